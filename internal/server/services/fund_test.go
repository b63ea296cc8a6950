package services

import (
	"testing"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/server/access"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFund_OwnerMembershipAndDetail(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", true)

	f, err := e.funds.CreateFund(e.ctx, ann.ID, "  Trip Fund ", " shared costs ")
	require.NoError(t, err)
	assert.Equal(t, "Trip Fund", f.Name)
	assert.Equal(t, "shared costs", f.Description)

	d, err := e.funds.GetFund(e.ctx, ann.ID, f.ID)
	require.NoError(t, err)
	assert.Equal(t, access.SourceMembership, d.Standing.Source)
	assert.True(t, d.CanManageMembers)
	assert.Equal(t, "ann", d.CreatorName)
	require.Len(t, d.Members, 1)
	assert.Equal(t, models.RoleOwner, d.Members[0].Role)
	assert.True(t, d.Total.IsZero())
}

func TestCreateFund_NameUniquePerCreator(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", false)
	bob := e.user(t, "bob", false)

	e.fund(t, ann, "Trip Fund")

	_, err := e.funds.CreateFund(e.ctx, ann.ID, "  trip FUND ", "")
	require.ErrorIs(t, err, common.ErrorDuplicateName)
	var fe *common.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "name", fe.Field)

	_, err = e.funds.CreateFund(e.ctx, bob.ID, "Trip Fund", "")
	require.NoError(t, err)
}

func TestCreateFund_Validation(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", false)

	_, err := e.funds.CreateFund(e.ctx, ann.ID, "   ", "")
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestAccess_CreatorFallbackAndMembership(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", true)
	bob := e.user(t, "bob", false)
	eve := e.user(t, "eve", false)
	f := e.fund(t, ann, "Trip Fund")

	// drop the explicit owner row; the creator keeps owning the fund
	_, err := e.store.Memberships(e.store.Conn()).Remove(e.ctx, f.ID, ann.ID)
	require.NoError(t, err)

	d, err := e.funds.GetFund(e.ctx, ann.ID, f.ID)
	require.NoError(t, err)
	assert.Equal(t, access.SourceCreator, d.Standing.Source)
	assert.True(t, d.Standing.IsOwner())

	_, err = e.funds.GetFund(e.ctx, bob.ID, f.ID)
	require.ErrorIs(t, err, common.ErrorPermission)

	require.NoError(t, e.funds.AddMember(e.ctx, ann.ID, f.ID, bob.ID, models.RoleViewer))
	_, err = e.funds.GetFund(e.ctx, bob.ID, f.ID)
	require.NoError(t, err)

	_, err = e.funds.GetFund(e.ctx, eve.ID, f.ID)
	require.ErrorIs(t, err, common.ErrorPermission)
}

func TestViewer_CannotMutate(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", true)
	cat := e.user(t, "cat", false)
	dan := e.user(t, "dan", false)
	f := e.fund(t, ann, "Trip Fund")
	require.NoError(t, e.funds.AddMember(e.ctx, ann.ID, f.ID, cat.ID, models.RoleViewer))
	require.NoError(t, e.funds.AddMember(e.ctx, ann.ID, f.ID, dan.ID, models.RoleMember))

	bob := e.individual(t, ann, "Bob")
	tx := e.entry(t, ann, f.ID, bob.ID, "10.00")

	d, err := e.funds.GetFund(e.ctx, cat.ID, f.ID)
	require.NoError(t, err)
	assert.False(t, d.CanEdit)
	assert.False(t, d.CanManageTransactions)
	require.Len(t, d.Transactions, 1)

	name := "Renamed"
	_, err = e.funds.UpdateFund(e.ctx, cat.ID, f.ID, FundUpdate{Name: &name})
	assert.ErrorIs(t, err, common.ErrorPermission)

	err = e.funds.AddMember(e.ctx, cat.ID, f.ID, dan.ID, models.RoleViewer)
	assert.ErrorIs(t, err, common.ErrorPermission)

	_, err = e.funds.RemoveMember(e.ctx, cat.ID, f.ID, dan.ID)
	assert.ErrorIs(t, err, common.ErrorPermission)

	_, err = e.txs.CreateTransaction(e.ctx, cat.ID, CreateTransactionInput{
		FundID: f.ID, SenderID: bob.ID, Amount: "5.00", Date: today,
	})
	assert.ErrorIs(t, err, common.ErrorPermission)

	_, err = e.txs.UpdateTransaction(e.ctx, cat.ID, tx.ID, UpdateTransactionInput{
		SenderID: bob.ID, Amount: "11.00", Date: today,
	})
	assert.ErrorIs(t, err, common.ErrorPermission)

	err = e.txs.DeleteTransaction(e.ctx, cat.ID, tx.ID)
	assert.ErrorIs(t, err, common.ErrorPermission)

	err = e.funds.DeleteFund(e.ctx, cat.ID, f.ID)
	assert.ErrorIs(t, err, common.ErrorPermission)
}

func TestMember_CanEditButNotManage(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", true)
	dan := e.user(t, "dan", false)
	f := e.fund(t, ann, "Trip Fund")
	require.NoError(t, e.funds.AddMember(e.ctx, ann.ID, f.ID, dan.ID, models.RoleMember))

	name := "Summer Trip"
	desc := "  beach "
	updated, err := e.funds.UpdateFund(e.ctx, dan.ID, f.ID, FundUpdate{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Summer Trip", updated.Name)
	assert.Equal(t, "beach", updated.Description)

	err = e.funds.DeleteFund(e.ctx, dan.ID, f.ID)
	assert.ErrorIs(t, err, common.ErrorPermission)
}

func TestUpdateFund_NameCheckedAgainstCreator(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", true)
	dan := e.user(t, "dan", false)
	f := e.fund(t, ann, "Trip Fund")
	e.fund(t, ann, "Rent")
	e.fund(t, dan, "Party")
	require.NoError(t, e.funds.AddMember(e.ctx, ann.ID, f.ID, dan.ID, models.RoleMember))

	rent := "rent"
	_, err := e.funds.UpdateFund(e.ctx, dan.ID, f.ID, FundUpdate{Name: &rent})
	assert.ErrorIs(t, err, common.ErrorDuplicateName)

	party := "Party"
	_, err = e.funds.UpdateFund(e.ctx, dan.ID, f.ID, FundUpdate{Name: &party})
	assert.NoError(t, err)

	same := "PARTY"
	_, err = e.funds.UpdateFund(e.ctx, ann.ID, f.ID, FundUpdate{Name: &same})
	assert.NoError(t, err, "renaming a fund to its own name with different case is allowed")
}

func TestAddMember_Rules(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", true)
	bob := e.user(t, "bob", false)
	f := e.fund(t, ann, "Trip Fund")

	err := e.funds.AddMember(e.ctx, ann.ID, f.ID, bob.ID, models.RoleOwner)
	assert.ErrorIs(t, err, common.ErrorValidation)

	err = e.funds.AddMember(e.ctx, ann.ID, f.ID, "missing", models.RoleViewer)
	assert.ErrorIs(t, err, common.ErrorValidation)

	require.NoError(t, e.funds.AddMember(e.ctx, ann.ID, f.ID, bob.ID, models.RoleViewer))
	require.NoError(t, e.funds.AddMember(e.ctx, ann.ID, f.ID, bob.ID, models.RoleMember))

	m, err := e.store.Memberships(e.store.Conn()).Get(e.ctx, f.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)
}

func TestAddMember_DemotesOwner(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", true)
	zed := e.user(t, "zed", true)
	f := e.fund(t, ann, "Trip Fund")

	require.NoError(t, e.store.Memberships(e.store.Conn()).Upsert(e.ctx, f.ID, zed.ID, models.RoleOwner))

	require.NoError(t, e.funds.AddMember(e.ctx, ann.ID, f.ID, zed.ID, models.RoleMember))

	m, err := e.store.Memberships(e.store.Conn()).Get(e.ctx, f.ID, zed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)

	err = e.funds.AddMember(e.ctx, zed.ID, f.ID, ann.ID, models.RoleViewer)
	assert.ErrorIs(t, err, common.ErrorPermission, "a demoted owner no longer manages members")
}

func TestRemoveMember_OwnerIsProtected(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", true)
	zed := e.user(t, "zed", true)
	bob := e.user(t, "bob", false)
	f := e.fund(t, ann, "Trip Fund")

	// a second owner row, as left by an import or manual fix
	require.NoError(t, e.store.Memberships(e.store.Conn()).Upsert(e.ctx, f.ID, zed.ID, models.RoleOwner))
	require.NoError(t, e.funds.AddMember(e.ctx, ann.ID, f.ID, bob.ID, models.RoleMember))

	_, err := e.funds.RemoveMember(e.ctx, zed.ID, f.ID, ann.ID)
	assert.ErrorIs(t, err, common.ErrorInvalidOperation)

	_, err = e.funds.RemoveMember(e.ctx, ann.ID, f.ID, ann.ID)
	assert.ErrorIs(t, err, common.ErrorInvalidOperation)

	removed, err := e.funds.RemoveMember(e.ctx, ann.ID, f.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = e.funds.RemoveMember(e.ctx, ann.ID, f.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestListFunds_AndOverview(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", true)
	bob := e.user(t, "bob", false)

	names := []string{"G", "F", "E", "D", "C", "B", "A"}
	var shared *models.Fund
	for _, n := range names {
		f := e.fund(t, ann, n)
		if n == "A" {
			shared = f
		}
	}
	require.NoError(t, e.funds.AddMember(e.ctx, ann.ID, shared.ID, bob.ID, models.RoleViewer))

	sender := e.individual(t, ann, "Payer")
	e.entry(t, ann, shared.ID, sender.ID, "12.50")

	list, err := e.funds.ListFunds(e.ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, list, 7)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, models.RoleOwner, list[0].Role)

	bobs, err := e.funds.ListFunds(e.ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, models.RoleViewer, bobs[0].Role)
	assert.Equal(t, "12.5", bobs[0].Total.String())

	o, err := e.funds.Overview(e.ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, o.FundCount)
	assert.Len(t, o.Funds, overviewSize)
	assert.Equal(t, "12.5", o.Total.String())
}

func TestGetFund_Candidates(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann", true)
	zed := e.user(t, "zed", true)
	e.user(t, "bob", false)
	f := e.fund(t, ann, "Trip Fund")

	d, err := e.funds.GetFund(e.ctx, ann.ID, f.ID)
	require.NoError(t, err)
	require.Len(t, d.Candidates, 1)
	assert.Equal(t, zed.ID, d.Candidates[0].ID)
}

func TestScenario_DeleteFundHidesItFromMembers(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "a", true)
	b := e.user(t, "b", false)
	c := e.user(t, "c", false)

	f := e.fund(t, a, "Trip Fund")
	require.NoError(t, e.funds.AddMember(e.ctx, a.ID, f.ID, b.ID, models.RoleMember))
	require.NoError(t, e.funds.AddMember(e.ctx, a.ID, f.ID, c.ID, models.RoleViewer))

	alice := &SenderInput{Name: "Alice", Type: models.SenderIndividual}
	tx, err := e.txs.CreateTransaction(e.ctx, b.ID, CreateTransactionInput{
		FundID: f.ID, NewSender: alice, Amount: "500.00", Date: today,
	})
	require.NoError(t, err)
	assert.Equal(t, "500", tx.Amount.String())

	_, err = e.txs.CreateTransaction(e.ctx, c.ID, CreateTransactionInput{
		FundID: f.ID, SenderID: tx.SenderID, Amount: "500.00", Date: "2025-06-14",
	})
	require.ErrorIs(t, err, common.ErrorPermission)

	require.NoError(t, e.funds.DeleteFund(e.ctx, a.ID, f.ID))

	for _, u := range []*models.User{b, c} {
		list, err := e.funds.ListFunds(e.ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, list)

		_, err = e.txs.ListTransactions(e.ctx, u.ID, f.ID, models.TransactionFilter{})
		assert.ErrorIs(t, err, common.ErrorNotFound)
	}
	_, err = e.store.Transactions(e.store.Conn()).GetByID(e.ctx, tx.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
