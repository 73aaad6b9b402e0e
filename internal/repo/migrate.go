package repo

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	moneyType   = map[string]string{dialect.Postgres: "numeric(20,4)"}
	percentType = map[string]string{dialect.Postgres: "numeric(7,4)"}
)

var (
	walletsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "user_id", Type: field.TypeUUID, Unique: true},
		{Name: "balance", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "hold_balance", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "currency", Type: field.TypeString, Size: 3},
		{Name: "is_active", Type: field.TypeBool, Default: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	WalletsTable = &schema.Table{
		Name:       "wallets",
		Columns:    walletsColumns,
		PrimaryKey: []*schema.Column{walletsColumns[0]},
		Annotation: &entsql.Annotation{
			Checks: map[string]string{
				"wallets_balance_non_negative":      "balance >= 0",
				"wallets_hold_balance_non_negative": "hold_balance >= 0",
			},
		},
	}

	walletTransactionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "amount", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "type", Type: field.TypeString, Size: 20},
		{Name: "status", Type: field.TypeString, Size: 20},
		{Name: "reference_id", Type: field.TypeString, Size: 64, Unique: true},
		{Name: "idempotency_key", Type: field.TypeString, Size: 128, Unique: true, Nullable: true},
		{Name: "description", Type: field.TypeString, Size: 500, Default: ""},
		{Name: "balance_after", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "hold_after", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "related_id", Type: field.TypeUUID, Nullable: true},
		{Name: "metadata", Type: field.TypeJSON, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "wallet_id", Type: field.TypeUUID},
	}
	WalletTransactionsTable = &schema.Table{
		Name:       "wallet_transactions",
		Columns:    walletTransactionsColumns,
		PrimaryKey: []*schema.Column{walletTransactionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "wallet_transactions_wallets_entries",
				Columns:    []*schema.Column{walletTransactionsColumns[12]},
				RefColumns: []*schema.Column{walletsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "wallettransaction_wallet_id_created_at",
				Columns: []*schema.Column{walletTransactionsColumns[12], walletTransactionsColumns[11]},
			},
			{
				Name:    "wallettransaction_related_id",
				Columns: []*schema.Column{walletTransactionsColumns[9]},
			},
		},
		Annotation: &entsql.Annotation{
			Checks: map[string]string{"wallet_transactions_amount_positive": "amount > 0"},
		},
	}

	commissionTiersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString, Size: 100},
		{Name: "min_amount", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "max_amount", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "percentage", Type: field.TypeFloat64, SchemaType: percentType},
		{Name: "flat_fee", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "freelancer_discount", Type: field.TypeFloat64, SchemaType: percentType},
		{Name: "client_discount", Type: field.TypeFloat64, SchemaType: percentType},
		{Name: "is_active", Type: field.TypeBool, Default: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	CommissionTiersTable = &schema.Table{
		Name:       "commission_tiers",
		Columns:    commissionTiersColumns,
		PrimaryKey: []*schema.Column{commissionTiersColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "commissiontier_is_active_min_amount",
				Columns: []*schema.Column{commissionTiersColumns[8], commissionTiersColumns[2]},
			},
		},
		Annotation: &entsql.Annotation{
			Checks: map[string]string{
				"commission_tiers_range":      "max_amount > min_amount AND min_amount >= 0",
				"commission_tiers_percentage": "percentage >= 0 AND percentage <= 100",
			},
		},
	}

	specialRatesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "user_id", Type: field.TypeUUID, Nullable: true},
		{Name: "category_id", Type: field.TypeUUID, Nullable: true},
		{Name: "percentage", Type: field.TypeFloat64, SchemaType: percentType},
		{Name: "flat_fee", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "reason", Type: field.TypeString, Size: 500, Default: ""},
		{Name: "starts_at", Type: field.TypeTime},
		{Name: "ends_at", Type: field.TypeTime, Nullable: true},
		{Name: "is_active", Type: field.TypeBool, Default: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	SpecialCommissionRatesTable = &schema.Table{
		Name:       "special_commission_rates",
		Columns:    specialRatesColumns,
		PrimaryKey: []*schema.Column{specialRatesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "specialcommissionrate_user_id", Columns: []*schema.Column{specialRatesColumns[1]}},
			{Name: "specialcommissionrate_category_id", Columns: []*schema.Column{specialRatesColumns[2]}},
		},
		Annotation: &entsql.Annotation{
			Checks: map[string]string{
				"special_commission_rates_target": "user_id IS NOT NULL OR category_id IS NOT NULL",
			},
		},
	}

	workUnitsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "kind", Type: field.TypeString, Size: 16},
		{Name: "project_id", Type: field.TypeUUID, Nullable: true},
		{Name: "client_id", Type: field.TypeUUID},
		{Name: "assignee_id", Type: field.TypeUUID, Nullable: true},
		{Name: "category_id", Type: field.TypeUUID, Nullable: true},
		{Name: "title", Type: field.TypeString, Size: 255, Default: ""},
		{Name: "budget", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "currency", Type: field.TypeString, Size: 3},
		{Name: "status", Type: field.TypeString, Size: 32},
		{Name: "payment_status", Type: field.TypeString, Size: 16},
		{Name: "payment_strategy", Type: field.TypeString, Size: 32},
		{Name: "auto_paid", Type: field.TypeBool, Default: false},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	WorkUnitsTable = &schema.Table{
		Name:       "work_units",
		Columns:    workUnitsColumns,
		PrimaryKey: []*schema.Column{workUnitsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "workunit_project_id", Columns: []*schema.Column{workUnitsColumns[2]}},
		},
	}

	transactionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "transaction_id", Type: field.TypeString, Size: 64, Unique: true},
		{Name: "from_user_id", Type: field.TypeUUID},
		{Name: "to_user_id", Type: field.TypeUUID},
		{Name: "amount", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "currency", Type: field.TypeString, Size: 3},
		{Name: "payment_type", Type: field.TypeString, Size: 20},
		{Name: "payment_method", Type: field.TypeString, Size: 20},
		{Name: "status", Type: field.TypeString, Size: 20},
		{Name: "platform_fee_amount", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "tax_amount", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "net_amount", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "project_id", Type: field.TypeUUID, Nullable: true},
		{Name: "task_id", Type: field.TypeUUID, Nullable: true},
		{Name: "milestone_id", Type: field.TypeUUID, Nullable: true},
		{Name: "parent_transaction_id", Type: field.TypeUUID, Nullable: true},
		{Name: "commission_tier_id", Type: field.TypeUUID, Nullable: true},
		{Name: "description", Type: field.TypeString, Size: 500, Default: ""},
		{Name: "notes", Type: field.TypeString, Size: 2000, Default: ""},
		{Name: "metadata", Type: field.TypeJSON, Nullable: true},
		{Name: "proof_verified", Type: field.TypeBool, Default: false},
		{Name: "proof_verified_by", Type: field.TypeUUID, Nullable: true},
		{Name: "proof_verified_at", Type: field.TypeTime, Nullable: true},
		{Name: "id_verified", Type: field.TypeBool, Default: false},
		{Name: "id_verification_method", Type: field.TypeString, Size: 50, Default: ""},
		{Name: "id_verified_by", Type: field.TypeUUID, Nullable: true},
		{Name: "id_verified_at", Type: field.TypeTime, Nullable: true},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	TransactionsTable = &schema.Table{
		Name:       "transactions",
		Columns:    transactionsColumns,
		PrimaryKey: []*schema.Column{transactionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "transactions_transactions_refunds",
				Columns:    []*schema.Column{transactionsColumns[15]},
				RefColumns: []*schema.Column{transactionsColumns[0]},
				OnDelete:   schema.NoAction,
			},
			{
				Symbol:     "transactions_commission_tiers_transactions",
				Columns:    []*schema.Column{transactionsColumns[16]},
				RefColumns: []*schema.Column{commissionTiersColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{Name: "transaction_from_user_id_created_at", Columns: []*schema.Column{transactionsColumns[2], transactionsColumns[28]}},
			{Name: "transaction_to_user_id_created_at", Columns: []*schema.Column{transactionsColumns[3], transactionsColumns[28]}},
			{Name: "transaction_project_id", Columns: []*schema.Column{transactionsColumns[12]}},
			{Name: "transaction_task_id", Columns: []*schema.Column{transactionsColumns[13]}},
			{Name: "transaction_milestone_id", Columns: []*schema.Column{transactionsColumns[14]}},
		},
		Annotation: &entsql.Annotation{
			Checks: map[string]string{"transactions_amount_positive": "amount > 0"},
		},
	}

	commissionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "transaction_id", Type: field.TypeUUID, Unique: true},
		{Name: "amount", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "percentage", Type: field.TypeFloat64, SchemaType: percentType},
		{Name: "flat_fee", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "currency", Type: field.TypeString, Size: 3},
		{Name: "tier_id", Type: field.TypeUUID, Nullable: true},
		{Name: "special_rate_id", Type: field.TypeUUID, Nullable: true},
		{Name: "is_discounted", Type: field.TypeBool, Default: false},
		{Name: "original_amount", Type: field.TypeFloat64, SchemaType: moneyType, Nullable: true},
		{Name: "discount_reason", Type: field.TypeString, Size: 500, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	CommissionsTable = &schema.Table{
		Name:       "commissions",
		Columns:    commissionsColumns,
		PrimaryKey: []*schema.Column{commissionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "commissions_transactions_commission",
				Columns:    []*schema.Column{commissionsColumns[1]},
				RefColumns: []*schema.Column{transactionsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "commission_created_at", Columns: []*schema.Column{commissionsColumns[11]}},
		},
	}

	milestonesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "project_id", Type: field.TypeUUID, Nullable: true},
		{Name: "task_id", Type: field.TypeUUID, Nullable: true},
		{Name: "title", Type: field.TypeString, Size: 255, Default: ""},
		{Name: "amount", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "milestone_type", Type: field.TypeString, Size: 16},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "due_date", Type: field.TypeTime, Nullable: true},
		{Name: "is_automated", Type: field.TypeBool, Default: false},
		{Name: "hold_reference", Type: field.TypeString, Size: 64, Default: ""},
		{Name: "transaction_id", Type: field.TypeUUID, Nullable: true},
		{Name: "approved_at", Type: field.TypeTime, Nullable: true},
		{Name: "paid_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	MilestonesTable = &schema.Table{
		Name:       "milestones",
		Columns:    milestonesColumns,
		PrimaryKey: []*schema.Column{milestonesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "milestones_work_units_project_milestones",
				Columns:    []*schema.Column{milestonesColumns[1]},
				RefColumns: []*schema.Column{workUnitsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "milestones_work_units_task_milestones",
				Columns:    []*schema.Column{milestonesColumns[2]},
				RefColumns: []*schema.Column{workUnitsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "milestone_project_id", Columns: []*schema.Column{milestonesColumns[1]}},
			{Name: "milestone_task_id", Columns: []*schema.Column{milestonesColumns[2]}},
		},
		Annotation: &entsql.Annotation{
			Checks: map[string]string{
				"milestones_single_owner":     "(project_id IS NULL) <> (task_id IS NULL)",
				"milestones_progress_no_cash": "milestone_type <> 'progress' OR amount = 0",
			},
		},
	}

	// Tables lists every ledger table in dependency order.
	Tables = []*schema.Table{
		WalletsTable,
		WalletTransactionsTable,
		CommissionTiersTable,
		SpecialCommissionRatesTable,
		WorkUnitsTable,
		TransactionsTable,
		CommissionsTable,
		MilestonesTable,
	}
)

func init() {
	WalletTransactionsTable.ForeignKeys[0].RefTable = WalletsTable
	TransactionsTable.ForeignKeys[0].RefTable = TransactionsTable
	TransactionsTable.ForeignKeys[1].RefTable = CommissionTiersTable
	CommissionsTable.ForeignKeys[0].RefTable = TransactionsTable
	MilestonesTable.ForeignKeys[0].RefTable = WorkUnitsTable
	MilestonesTable.ForeignKeys[1].RefTable = WorkUnitsTable
}

// Migrate creates or updates the ledger schema. Extra options (column and
// index drops) are appended to the defaults.
func Migrate(ctx context.Context, drv dialect.Driver, opts ...schema.MigrateOption) error {
	m, err := schema.NewMigrate(drv, append([]schema.MigrateOption{schema.WithForeignKeys(true)}, opts...)...)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
