package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	"github.com/dmitrijs2005/fundkeeper/internal/server/config"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/memstore"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

const today = "2025-06-15"

type env struct {
	ctx     context.Context
	store   *memstore.Store
	cfg     *config.Config
	funds   *FundService
	senders *SenderService
	txs     *TransactionService
	users   *UserService
	exports *ExportService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memstore.New()
	logger := logging.NewDiscardLogger()
	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		S3Region:                     "us-east-1",
		S3RootUser:                   "minioadmin",
		S3RootPassword:               "minioadmin",
		S3BaseEndpoint:               "http://127.0.0.1:9000",
		S3Bucket:                     "exports",
		ExportLinkValidityDuration:   15 * time.Minute,
	}

	e := &env{
		ctx:     context.Background(),
		store:   store,
		cfg:     cfg,
		funds:   NewFundService(store, store, logger),
		senders: NewSenderService(store, store, logger),
		txs:     NewTransactionService(store, store, logger),
		users:   NewUserService(store, store, logger, cfg),
		exports: NewExportService(store, store, logger, cfg),
	}
	clock := func() time.Time { return testNow }
	e.funds.now = clock
	e.senders.now = clock
	e.txs.now = clock
	e.users.now = clock
	e.exports.now = clock
	return e
}

func (e *env) user(t *testing.T, name string, admin bool) *models.User {
	t.Helper()
	u, err := e.users.Register(e.ctx, UserInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "password123",
		IsAdmin:  admin,
	})
	require.NoError(t, err)
	return u
}

func (e *env) fund(t *testing.T, actor *models.User, name string) *models.Fund {
	t.Helper()
	f, err := e.funds.CreateFund(e.ctx, actor.ID, name, "")
	require.NoError(t, err)
	return f
}

func (e *env) individual(t *testing.T, actor *models.User, name string) *models.Sender {
	t.Helper()
	s, err := e.senders.CreateSender(e.ctx, actor.ID, SenderInput{Name: name, Type: models.SenderIndividual})
	require.NoError(t, err)
	return s
}

func (e *env) entry(t *testing.T, actor *models.User, fundID, senderID, amount string) *models.Transaction {
	t.Helper()
	tx, err := e.txs.CreateTransaction(e.ctx, actor.ID, CreateTransactionInput{
		FundID: fundID, SenderID: senderID, Amount: amount, Date: today,
	})
	require.NoError(t, err)
	return tx
}
