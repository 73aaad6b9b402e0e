package repo

import (
	"testing"

	"entgo.io/ent/dialect/sql/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func columnNames(t *schema.Table) []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, c.Name)
	}
	return out
}

// The hand-written column lists used by the queries must stay in step with
// the migrated schema.
func TestSchema_QueryColumnsMatchTables(t *testing.T) {
	cases := []struct {
		table   *schema.Table
		columns []string
	}{
		{WalletsTable, walletColumns},
		{WalletTransactionsTable, walletTxColumns},
		{CommissionTiersTable, tierColumns},
		{SpecialCommissionRatesTable, specialRateColumns},
		{WorkUnitsTable, workUnitColumns},
		{TransactionsTable, transactionColumns},
		{CommissionsTable, commissionColumns},
		{MilestonesTable, milestoneColumns},
	}
	require.Len(t, cases, len(Tables))
	for _, tc := range cases {
		t.Run(tc.table.Name, func(t *testing.T) {
			assert.ElementsMatch(t, columnNames(tc.table), tc.columns)
		})
	}
}

func TestSchema_CheckConstraints(t *testing.T) {
	want := map[*schema.Table][]string{
		WalletsTable:                {"wallets_balance_non_negative", "wallets_hold_balance_non_negative"},
		WalletTransactionsTable:     {"wallet_transactions_amount_positive"},
		CommissionTiersTable:        {"commission_tiers_range", "commission_tiers_percentage"},
		SpecialCommissionRatesTable: {"special_commission_rates_target"},
		TransactionsTable:           {"transactions_amount_positive"},
		MilestonesTable:             {"milestones_single_owner", "milestones_progress_no_cash"},
	}
	for table, checks := range want {
		require.NotNil(t, table.Annotation, table.Name)
		for _, name := range checks {
			assert.Contains(t, table.Annotation.Checks, name, table.Name)
		}
	}
	assert.Equal(t, "balance >= 0", WalletsTable.Annotation.Checks["wallets_balance_non_negative"])
}

func TestSchema_ForeignKeysResolved(t *testing.T) {
	for _, table := range Tables {
		for _, fk := range table.ForeignKeys {
			assert.NotNil(t, fk.RefTable, "%s.%s", table.Name, fk.Symbol)
		}
	}
	assert.Same(t, WalletsTable, WalletTransactionsTable.ForeignKeys[0].RefTable)
	assert.Same(t, WorkUnitsTable, MilestonesTable.ForeignKeys[0].RefTable)
}
