package coverageeligibility

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/LinuxForHealth/connect-contracts/pkg/fhir"
	"github.com/LinuxForHealth/connect-contracts/pkg/interfaces"
	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
)

// EventName is the chaincode event emitted after every completed check
const EventName = "CoverageEligibilityChecked"

// SmartContract provides functions for checking coverage eligibility
type SmartContract struct {
	contractapi.Contract
	checker interfaces.EligibilityChecker
	logger  *logger.Logger
}

// CheckedEvent is the payload of the CoverageEligibilityChecked chaincode event
type CheckedEvent struct {
	RequestID  string `json:"request_id"`
	ResponseID string `json:"response_id"`
	Inforce    bool   `json:"inforce"`
	Patient    string `json:"patient"`
	Insurer    string `json:"insurer"`
	Coverage   string `json:"coverage"`
	Invoker    string `json:"invoker,omitempty"`
	TxID       string `json:"tx_id"`
}

// NewSmartContract creates the contract around checker
func NewSmartContract(checker interfaces.EligibilityChecker, log *logger.Logger) *SmartContract {
	return &SmartContract{checker: checker, logger: log}
}

// Configure sets the NATS and FHIR servers from a {nats_server, fhir_server} JSON blob
func (s *SmartContract) Configure(ctx contractapi.TransactionContextInterface, configJSON string) error {
	entry := s.logger.WithComponent("chaincode").WithField("tx_id", ctx.GetStub().GetTxID())
	if invoker, err := s.getCallerIdentity(ctx); err == nil {
		entry = entry.WithField("invoker", invoker)
	}

	if err := s.checker.Configure(context.Background(), []byte(configJSON)); err != nil {
		entry.WithError(err).Warn("Configuration rejected")
		return fmt.Errorf("failed to configure: %w", err)
	}

	entry.Info("Contract configured")
	return nil
}

// CheckEligibility evaluates a CoverageEligibilityRequest and publishes the
// response. The transaction fails only when the request itself is invalid.
func (s *SmartContract) CheckEligibility(ctx contractapi.TransactionContextInterface, requestJSON string) error {
	txID := ctx.GetStub().GetTxID()
	entry := s.logger.WithComponent("chaincode").WithField("tx_id", txID)

	response, err := s.checker.Check(context.Background(), []byte(requestJSON))
	if err != nil {
		entry.WithError(err).Warn("Eligibility check rejected")
		return fmt.Errorf("eligibility check failed: %w", err)
	}

	event := CheckedEvent{
		RequestID:  strings.TrimPrefix(response.Request.Reference, string(fhir.KindCoverageEligibilityRequest)+"/"),
		ResponseID: response.ID,
		Inforce:    response.Inforce(),
		Patient:    response.Patient.Reference,
		Insurer:    response.Insurer.Reference,
		TxID:       txID,
	}
	if len(response.Insurance) > 0 {
		event.Coverage = response.Insurance[0].Coverage.Reference
	}
	if invoker, err := s.getCallerIdentity(ctx); err == nil {
		event.Invoker = invoker
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %v", err)
	}
	if err := ctx.GetStub().SetEvent(EventName, eventJSON); err != nil {
		return fmt.Errorf("failed to set event: %v", err)
	}

	return nil
}

// getCallerIdentity gets the identity of the transaction caller
func (s *SmartContract) getCallerIdentity(ctx contractapi.TransactionContextInterface) (string, error) {
	clientIdentity := ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", fmt.Errorf("no client identity")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client ID: %v", err)
	}
	return id, nil
}
