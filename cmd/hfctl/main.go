package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/nalapon/hf-web-client/pkg/custodian"
	"github.com/nalapon/hf-web-client/pkg/fabric"
	"github.com/nalapon/hf-web-client/pkg/gateway"
	"github.com/nalapon/hf-web-client/pkg/keystore"
	"github.com/nalapon/hf-web-client/pkg/keystore/badgerstore"
	"github.com/nalapon/hf-web-client/pkg/keystore/filestore"
	"github.com/nalapon/hf-web-client/pkg/loadtest"
)

var fullCmd string

var (
	app       = kingpin.New("hfctl", "A manual exerciser for the identity custodian and Fabric Gateway client")
	storeFlag = app.Flag("store", "Path to the key store (JSON file, or a directory when --badger is set)").Default("hfctl-store.json").String()
	badger    = app.Flag("badger", "Treat --store as a badger database directory instead of a JSON file").Bool()

	createIdentity     = app.Command("create-identity", "Seal a new password-protected identity")
	createCert         = createIdentity.Flag("cert", "Path to the certificate PEM file").Required().String()
	createKey          = createIdentity.Flag("key", "Path to the private key PEM file").Required().String()
	createPasswordFlag = createIdentity.Flag("password", "Password; a BIP-39 mnemonic is generated if omitted").String()

	unlock         = app.Command("unlock", "Unlock the sealed identity")
	unlockPassword = unlock.Flag("password", "Password").Required().String()

	deleteIdentity = app.Command("delete-identity", "Delete the sealed identity and clear in-memory key material")

	evaluate        = app.Command("evaluate", "Evaluate a transaction (query, not submitted to the ordering service)")
	evalConfig      = evaluate.Flag("config", "Path to the gateway config YAML").Required().Short('c').String()
	evalUnlock      = evaluate.Flag("password", "Password to unlock the identity for this call").Required().String()
	evalMSPID       = evaluate.Flag("mspid", "MSP ID of the submitting identity").Required().String()
	evalChannel     = evaluate.Flag("channel", "Channel name").Required().String()
	evalChaincode   = evaluate.Flag("chaincode", "Chaincode name").Required().String()
	evalFunction    = evaluate.Arg("function", "Chaincode function name").Required().String()
	evalArgs        = evaluate.Arg("args", "Function arguments").Strings()

	submit          = app.Command("submit", "Endorse, submit and wait for commit")
	submitConfig    = submit.Flag("config", "Path to the gateway config YAML").Required().Short('c').String()
	submitUnlock    = submit.Flag("password", "Password to unlock the identity for this call").Required().String()
	submitMSPID     = submit.Flag("mspid", "MSP ID of the submitting identity").Required().String()
	submitChannel   = submit.Flag("channel", "Channel name").Required().String()
	submitChaincode = submit.Flag("chaincode", "Chaincode name").Required().String()
	submitFunction  = submit.Arg("function", "Chaincode function name").Required().String()
	submitArgs      = submit.Arg("args", "Function arguments").Strings()

	listenChaincode     = app.Command("listen-chaincode", "Stream chaincode events until interrupted")
	listenConfig        = listenChaincode.Flag("config", "Path to the gateway config YAML").Required().Short('c').String()
	listenUnlock        = listenChaincode.Flag("password", "Password to unlock the identity for this call").Required().String()
	listenMSPID         = listenChaincode.Flag("mspid", "MSP ID of the submitting identity").Required().String()
	listenChannel       = listenChaincode.Flag("channel", "Channel name").Required().String()
	listenChaincodeName = listenChaincode.Arg("chaincode", "Chaincode name").Required().String()

	loadtestCmd        = app.Command("loadtest", "Submit a rate-limited burst of identical transactions and report latency")
	loadtestConfig     = loadtestCmd.Flag("config", "Path to the gateway config YAML").Required().Short('c').String()
	loadtestUnlock     = loadtestCmd.Flag("password", "Password to unlock the identity for this call").Required().String()
	loadtestMSPID      = loadtestCmd.Flag("mspid", "MSP ID of the submitting identity").Required().String()
	loadtestChannel    = loadtestCmd.Flag("channel", "Channel name").Required().String()
	loadtestChaincode  = loadtestCmd.Flag("chaincode", "Chaincode name").Required().String()
	loadtestCount      = loadtestCmd.Flag("count", "Number of transactions to submit").Default("100").Int()
	loadtestConcurrent = loadtestCmd.Flag("concurrency", "Number of concurrent workers").Default("10").Int()
	loadtestRate       = loadtestCmd.Flag("rate", "Transactions per second; 0 is unthrottled").Default("0").Float64()
	loadtestBurst      = loadtestCmd.Flag("burst", "Token bucket burst size, required when --rate is set").Default("1").Int()
	loadtestFunction   = loadtestCmd.Arg("function", "Chaincode function name").Required().String()
	loadtestArgs       = loadtestCmd.Arg("args", "Function arguments").Strings()
)

func setLogLevel(logger *log.Logger) {
	logger.SetLevel(log.InfoLevel)
	if value, ok := os.LookupEnv("HFCTL_LOGLEVEL"); ok {
		if level, err := log.ParseLevel(value); err == nil {
			logger.SetLevel(level)
		}
	}
}

func getLogger() *log.Logger {
	logger := log.New()
	setLogLevel(logger)
	return logger
}

func openStore() (keystore.Store, error) {
	if *badger {
		return badgerstore.New(*storeFlag)
	}
	return filestore.New(*storeFlag)
}

func stringArgs(args []string) []fabric.Arg {
	out := make([]fabric.Arg, 0, len(args))
	for _, a := range args {
		out = append(out, fabric.StringArg(a))
	}
	return out
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed reading %s", path)
	}
	return string(data), nil
}

func runCreateIdentity(logger *log.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	certPEM, err := readFile(*createCert)
	if err != nil {
		return err
	}
	keyPEM, err := readFile(*createKey)
	if err != nil {
		return err
	}

	c := custodian.New(store)
	_, mnemonic, shares, err := c.CreatePasswordIdentity(certPEM, keyPEM, *createPasswordFlag)
	if err != nil {
		return err
	}

	logger.Infof("identity sealed in %s", *storeFlag)
	if *createPasswordFlag == "" {
		logger.Infof("generated recovery mnemonic: %s", mnemonic)
	}
	for i, share := range shares {
		logger.Infof("recovery share %d/%d: %s", i+1, len(shares), share)
	}
	return nil
}

func runUnlock(logger *log.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	c := custodian.New(store)
	identity, err := c.UnlockIdentity(*unlockPassword)
	if err != nil {
		return err
	}
	logger.Infof("unlocked identity, certificate:\n%s", identity.CertPEM)
	return nil
}

func runDeleteIdentity(logger *log.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := custodian.New(store).DeleteIdentity(); err != nil {
		return err
	}
	logger.Infof("deleted sealed identity in %s", *storeFlag)
	return nil
}

func runEvaluate(logger *log.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	c := custodian.New(store)
	identity, err := c.UnlockIdentity(*evalUnlock)
	if err != nil {
		return err
	}

	cfg, err := gateway.LoadConfig(*evalConfig)
	if err != nil {
		return err
	}
	client, err := gateway.New(*cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	params := fabric.ProposalParams{
		MSPID:         *evalMSPID,
		ChannelName:   *evalChannel,
		ChaincodeName: *evalChaincode,
		FunctionName:  *evalFunction,
		Args:          stringArgs(*evalArgs),
	}
	result, err := client.EvaluateTransaction(context.Background(), params, identity)
	if err != nil {
		return err
	}
	logger.Infof("tx %s: %+v", result.TxID, result.ParsedData)
	return nil
}

func runSubmit(logger *log.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	c := custodian.New(store)
	identity, err := c.UnlockIdentity(*submitUnlock)
	if err != nil {
		return err
	}

	cfg, err := gateway.LoadConfig(*submitConfig)
	if err != nil {
		return err
	}
	client, err := gateway.New(*cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	params := fabric.ProposalParams{
		MSPID:         *submitMSPID,
		ChannelName:   *submitChannel,
		ChaincodeName: *submitChaincode,
		FunctionName:  *submitFunction,
		Args:          stringArgs(*submitArgs),
	}
	result, err := client.SubmitAndCommit(context.Background(), params, identity)
	if err != nil {
		return err
	}
	logger.Infof("tx %s committed: %+v", result.TxID, result.Result)
	return nil
}

func runListenChaincode(logger *log.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	c := custodian.New(store)
	identity, err := c.UnlockIdentity(*listenUnlock)
	if err != nil {
		return err
	}

	cfg, err := gateway.LoadConfig(*listenConfig)
	if err != nil {
		return err
	}
	client, err := gateway.New(*cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := client.ListenChaincodeEvents(ctx, *listenChannel, *listenChaincodeName, *listenMSPID, identity)
	if err != nil {
		return err
	}
	logger.Infof("listening for events from %s on %s, ctrl-c to stop", *listenChaincodeName, *listenChannel)
	for batch := range events {
		for _, e := range batch.Events {
			logger.Infof("block %d tx %s: %s %s", batch.BlockNumber, e.TxID, e.EventName, strings.TrimSpace(string(e.Payload)))
		}
	}
	return nil
}

func runLoadtest(logger *log.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	c := custodian.New(store)
	identity, err := c.UnlockIdentity(*loadtestUnlock)
	if err != nil {
		return err
	}

	cfg, err := gateway.LoadConfig(*loadtestConfig)
	if err != nil {
		return err
	}
	client, err := gateway.New(*cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	args := stringArgs(*loadtestArgs)
	params := func(i int) fabric.ProposalParams {
		return fabric.ProposalParams{
			MSPID:         *loadtestMSPID,
			ChannelName:   *loadtestChannel,
			ChaincodeName: *loadtestChaincode,
			FunctionName:  *loadtestFunction,
			Args:          args,
		}
	}

	runner := loadtest.NewRunner(client, identity, loadtest.Config{
		TxCount:       *loadtestCount,
		Concurrency:   *loadtestConcurrent,
		RatePerSecond: *loadtestRate,
		Burst:         *loadtestBurst,
	})

	report, err := runner.Run(context.Background(), params)
	if err != nil {
		return err
	}

	logger.Infof("submitted %d, committed %d, aborted %d (%.2f%%)", report.TotalTx, report.CommittedTx, report.AbortCount, report.AbortRate*100)
	logger.Infof("latency avg=%s p50=%s p95=%s p99=%s", report.AverageLatency, report.P50Latency, report.P95Latency, report.P99Latency)
	logger.Infof("duration=%s tps=%.1f", report.Duration, report.TPS)
	return nil
}

func main() {
	var err error
	logger := getLogger()

	fullCmd = kingpin.MustParse(app.Parse(os.Args[1:]))
	switch fullCmd {
	case createIdentity.FullCommand():
		err = runCreateIdentity(logger)
	case unlock.FullCommand():
		err = runUnlock(logger)
	case deleteIdentity.FullCommand():
		err = runDeleteIdentity(logger)
	case evaluate.FullCommand():
		err = runEvaluate(logger)
	case submit.FullCommand():
		err = runSubmit(logger)
	case listenChaincode.FullCommand():
		err = runListenChaincode(logger)
	case loadtestCmd.FullCommand():
		err = runLoadtest(logger)
	default:
		err = errors.Errorf("Invalid command: %s", fullCmd)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
