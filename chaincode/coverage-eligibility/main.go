package main

import (
	"log"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LinuxForHealth/connect-contracts/chaincode/coverage-eligibility/coverageeligibility"
	"github.com/LinuxForHealth/connect-contracts/internal/eligibility"
	"github.com/LinuxForHealth/connect-contracts/pkg/config"
	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
	"github.com/LinuxForHealth/connect-contracts/pkg/monitoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Panicf("Error loading configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)

	service, err := newService(cfg, appLogger, prometheus.DefaultRegisterer)
	if err != nil {
		log.Panicf("Error creating eligibility service: %v", err)
	}

	eligibilityChaincode, err := contractapi.NewChaincode(coverageeligibility.NewSmartContract(service, appLogger))
	if err != nil {
		log.Panicf("Error creating CoverageEligibility chaincode: %v", err)
	}

	if err := eligibilityChaincode.Start(); err != nil {
		log.Panicf("Error starting CoverageEligibility chaincode: %v", err)
	}
}

// newService builds the eligibility service with its metrics on reg
func newService(cfg *config.Config, log *logger.Logger, reg prometheus.Registerer) (*eligibility.Service, error) {
	return eligibility.NewService(cfg, log, monitoring.NewMetricsCollector(reg), nil)
}
