package services_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
)

type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) GetByID(ctx context.Context, tenantID, id string) (*entities.Patient, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

func (m *MockPatientRepository) ListByDateOfBirth(ctx context.Context, tenantID string, dob time.Time) ([]*entities.Patient, error) {
	args := m.Called(ctx, tenantID, dob)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Patient), args.Error(1)
}

type MockProviderRepository struct {
	mock.Mock
}

func (m *MockProviderRepository) GetByID(ctx context.Context, tenantID, id string) (*entities.Provider, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) ListActive(ctx context.Context, tenantID string) ([]*entities.Provider, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Provider), args.Error(1)
}

type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) GetByID(ctx context.Context, tenantID, id string) (*entities.Appointment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListBlocking(ctx context.Context, tenantID, providerID string, from, to time.Time) ([]*entities.Appointment, error) {
	args := m.Called(ctx, tenantID, providerID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) FindByPatientOnDate(ctx context.Context, tenantID, patientID string, day time.Time) (*entities.Appointment, error) {
	args := m.Called(ctx, tenantID, patientID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

type MockApprovalRepository struct {
	mock.Mock
}

func (m *MockApprovalRepository) Create(ctx context.Context, approval *entities.ApprovalRequest) error {
	args := m.Called(ctx, approval)
	return args.Error(0)
}

func (m *MockApprovalRepository) GetByID(ctx context.Context, tenantID, id string) (*entities.ApprovalRequest, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ApprovalRequest), args.Error(1)
}

func (m *MockApprovalRepository) GetPendingByIdempotencyKey(ctx context.Context, tenantID, key string) (*entities.ApprovalRequest, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ApprovalRequest), args.Error(1)
}

func (m *MockApprovalRepository) ListByStatus(ctx context.Context, tenantID string, status entities.ApprovalStatus, limit, offset int) ([]*entities.ApprovalRequest, error) {
	args := m.Called(ctx, tenantID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ApprovalRequest), args.Error(1)
}

type MockApprovalResolver struct {
	mock.Mock
}

func (m *MockApprovalResolver) Resolve(ctx context.Context, tenantID, approvalID string, decision repositories.ResolveDecision) (*entities.ApprovalRequest, error) {
	args := m.Called(ctx, tenantID, approvalID, decision)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ApprovalRequest), args.Error(1)
}

type MockInsuranceRepository struct {
	mock.Mock
}

func (m *MockInsuranceRepository) ListActiveByPatient(ctx context.Context, tenantID, patientID string) ([]*entities.InsurancePolicy, error) {
	args := m.Called(ctx, tenantID, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.InsurancePolicy), args.Error(1)
}

type MockCallRepository struct {
	mock.Mock
}

func (m *MockCallRepository) EnsureRecord(ctx context.Context, record *entities.CallRecord) (string, error) {
	args := m.Called(ctx, record)
	return args.String(0), args.Error(1)
}

func (m *MockCallRepository) GetByExternalID(ctx context.Context, tenantID, externalCallID string) (*entities.CallRecord, error) {
	args := m.Called(ctx, tenantID, externalCallID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CallRecord), args.Error(1)
}

func (m *MockCallRepository) Finalize(ctx context.Context, tenantID, externalCallID string, record *entities.CallRecord) error {
	args := m.Called(ctx, tenantID, externalCallID, record)
	return args.Error(0)
}

func (m *MockCallRepository) ApplyAnalysis(ctx context.Context, tenantID, externalCallID string, summary, sentiment string, outcome entities.CallOutcome) error {
	args := m.Called(ctx, tenantID, externalCallID, summary, sentiment, outcome)
	return args.Error(0)
}

func (m *MockCallRepository) FlagForReview(ctx context.Context, tenantID, externalCallID, reason string) error {
	args := m.Called(ctx, tenantID, externalCallID, reason)
	return args.Error(0)
}

func (m *MockCallRepository) FlagForReviewByID(ctx context.Context, callRecordID, reason string) error {
	args := m.Called(ctx, callRecordID, reason)
	return args.Error(0)
}

func (m *MockCallRepository) AppendTranscript(ctx context.Context, entries []*entities.TranscriptEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockCallRepository) ListTranscript(ctx context.Context, callID string) ([]*entities.TranscriptEntry, error) {
	args := m.Called(ctx, callID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TranscriptEntry), args.Error(1)
}

func (m *MockCallRepository) RecordToolInvocation(ctx context.Context, invocation *entities.ToolInvocation) error {
	args := m.Called(ctx, invocation)
	return args.Error(0)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.ApprovalEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.ApprovalEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.ApprovalEvent), args.Error(1)
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()
	return args.Error(0)
}
