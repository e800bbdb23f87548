package coverageeligibility

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LinuxForHealth/connect-contracts/pkg/fhir"
	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
	"github.com/LinuxForHealth/connect-contracts/pkg/types"
)

// MockTransactionContext provides a mock transaction context for testing
type MockTransactionContext struct {
	mock.Mock
}

func (m *MockTransactionContext) GetStub() shim.ChaincodeStubInterface {
	args := m.Called()
	return args.Get(0).(shim.ChaincodeStubInterface)
}

func (m *MockTransactionContext) GetClientIdentity() cid.ClientIdentity {
	args := m.Called()
	return args.Get(0).(cid.ClientIdentity)
}

// MockChaincodeStub provides a mock chaincode stub for testing. Stub methods
// not overridden here panic through the nil embedded interface.
type MockChaincodeStub struct {
	shim.ChaincodeStubInterface
	mock.Mock
}

func (m *MockChaincodeStub) GetTxID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockChaincodeStub) SetEvent(name string, payload []byte) error {
	args := m.Called(name, payload)
	return args.Error(0)
}

// MockClientIdentity provides a mock client identity for testing
type MockClientIdentity struct {
	cid.ClientIdentity
	mock.Mock
}

func (m *MockClientIdentity) GetID() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

// MockChecker provides a mock eligibility flow for testing
type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Configure(ctx context.Context, data []byte) error {
	return m.Called(ctx, data).Error(0)
}

func (m *MockChecker) Check(ctx context.Context, document []byte) (*fhir.CoverageEligibilityResponse, error) {
	args := m.Called(ctx, document)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fhir.CoverageEligibilityResponse), args.Error(1)
}

func newTestContext(txID string) (*MockTransactionContext, *MockChaincodeStub) {
	ctx := new(MockTransactionContext)
	stub := new(MockChaincodeStub)
	identity := new(MockClientIdentity)

	ctx.On("GetStub").Return(stub)
	ctx.On("GetClientIdentity").Return(identity)
	identity.On("GetID").Return("x509::CN=peer0.org1", nil)
	stub.On("GetTxID").Return(txID)

	return ctx, stub
}

func testResponse(inforce bool) *fhir.CoverageEligibilityResponse {
	return &fhir.CoverageEligibilityResponse{
		ResourceType: "CoverageEligibilityResponse",
		ID:           "6f1d8c2e-4b3a-5c1d-9e8f-7a6b5c4d3e2f",
		Status:       "active",
		Purpose:      []string{"validation"},
		Patient:      fhir.Reference{Reference: "Patient/1"},
		Created:      "2021-06-15",
		Request:      fhir.Reference{Reference: "CoverageEligibilityRequest/R1"},
		Outcome:      "complete",
		Insurer:      fhir.Reference{Reference: "Organization/1"},
		Insurance: []fhir.ResponseInsurance{{
			Coverage: fhir.Reference{Reference: "Coverage/1"},
			Inforce:  inforce,
		}},
	}
}

func TestNewChaincode(t *testing.T) {
	_, err := contractapi.NewChaincode(NewSmartContract(new(MockChecker), logger.Discard()))
	assert.NoError(t, err)
}

func TestSmartContract_Configure(t *testing.T) {
	checker := new(MockChecker)
	contract := NewSmartContract(checker, logger.Discard())
	ctx, _ := newTestContext("tx_configure")

	blob := `{"nats_server": "tls://nats.example.org:4222", "fhir_server": "https://fhir.example.org/fhir"}`
	checker.On("Configure", mock.Anything, []byte(blob)).Return(nil)

	assert.NoError(t, contract.Configure(ctx, blob))
	checker.AssertExpectations(t)
}

func TestSmartContract_Configure_Invalid(t *testing.T) {
	checker := new(MockChecker)
	contract := NewSmartContract(checker, logger.Discard())
	ctx, _ := newTestContext("tx_configure")

	checker.On("Configure", mock.Anything, mock.Anything).
		Return(types.NewConfigurationError("invalid instance configuration", errors.New("fhir_server is required")))

	err := contract.Configure(ctx, `{"nats_server": "tls://nats.example.org:4222"}`)
	assert.Error(t, err)
	assert.True(t, types.IsType(err, types.ErrorTypeConfiguration))
}

func TestSmartContract_CheckEligibility_EmitsEvent(t *testing.T) {
	checker := new(MockChecker)
	contract := NewSmartContract(checker, logger.Discard())
	ctx, stub := newTestContext("tx_check_123")

	checker.On("Check", mock.Anything, []byte(`{"id":"R1"}`)).Return(testResponse(true), nil)
	stub.On("SetEvent", EventName, mock.AnythingOfType("[]uint8")).Return(nil)

	require.NoError(t, contract.CheckEligibility(ctx, `{"id":"R1"}`))

	stub.AssertCalled(t, "SetEvent", EventName, mock.AnythingOfType("[]uint8"))
	payload := stub.Calls[len(stub.Calls)-1].Arguments.Get(1).([]byte)

	var event CheckedEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "R1", event.RequestID)
	assert.True(t, event.Inforce)
	assert.Equal(t, "Patient/1", event.Patient)
	assert.Equal(t, "Organization/1", event.Insurer)
	assert.Equal(t, "Coverage/1", event.Coverage)
	assert.Equal(t, "tx_check_123", event.TxID)
	assert.Equal(t, "x509::CN=peer0.org1", event.Invoker)
}

func TestSmartContract_CheckEligibility_NotInforceStillSucceeds(t *testing.T) {
	checker := new(MockChecker)
	contract := NewSmartContract(checker, logger.Discard())
	ctx, stub := newTestContext("tx_check_456")

	checker.On("Check", mock.Anything, mock.Anything).Return(testResponse(false), nil)
	stub.On("SetEvent", EventName, mock.AnythingOfType("[]uint8")).Return(nil)

	assert.NoError(t, contract.CheckEligibility(ctx, `{"id":"R2"}`))
}

func TestSmartContract_CheckEligibility_ValidationFailure(t *testing.T) {
	checker := new(MockChecker)
	contract := NewSmartContract(checker, logger.Discard())
	ctx, stub := newTestContext("tx_check_789")

	checker.On("Check", mock.Anything, mock.Anything).
		Return(nil, types.NewValidationError(types.ErrCodeValidationFailed, "CoverageEligibilityRequest document failed schema validation", nil))

	err := contract.CheckEligibility(ctx, `{"resourceType": "CoverageEligibilityRequest"}`)
	assert.True(t, types.IsType(err, types.ErrorTypeValidation))
	stub.AssertNotCalled(t, "SetEvent", mock.Anything, mock.Anything)
}

func TestSmartContract_CheckEligibility_SetEventFailure(t *testing.T) {
	checker := new(MockChecker)
	contract := NewSmartContract(checker, logger.Discard())
	ctx, stub := newTestContext("tx_check_999")

	checker.On("Check", mock.Anything, mock.Anything).Return(testResponse(true), nil)
	stub.On("SetEvent", EventName, mock.Anything).Return(errors.New("event name can not be empty string"))

	assert.Error(t, contract.CheckEligibility(ctx, `{"id":"R1"}`))
}
