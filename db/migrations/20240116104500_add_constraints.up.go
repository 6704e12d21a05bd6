package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {

		if db.Dialect().Name().String() != "pg" {
			fmt.Printf("\033[1;31m%s\033[0m", "You are not using PostgreSQL. DB level checks can not be enabled!\n")
			return nil
		}
		sql := `
			-- a transaction can be reversed by at most one cancel transaction
				CREATE UNIQUE INDEX transactions_cancel_target_unique
				ON transactions (cancel_transaction_id)
				WHERE cancel_transaction_id IS NOT NULL;

			-- a booking can be cancelled at most once
				CREATE UNIQUE INDEX cancellations_booking_unique
				ON cancellations (booking_id);

			-- ledger rows are append-only
				CREATE OR REPLACE FUNCTION reject_ledger_mutation()
					RETURNS TRIGGER AS $$
				BEGIN
					RAISE EXCEPTION 'ledger rows are append-only [transaction_id:%]', OLD.id;
				END;
				$$ LANGUAGE plpgsql;
				CREATE TRIGGER transactions_append_only
				BEFORE UPDATE OR DELETE ON transactions
				FOR EACH ROW EXECUTE PROCEDURE reject_ledger_mutation();
				CREATE TRIGGER transaction_details_append_only
				BEFORE UPDATE OR DELETE ON transaction_details
				FOR EACH ROW EXECUTE PROCEDURE reject_ledger_mutation();
		`
		if _, err := db.Exec(sql); err != nil {
			return err
		}
		return nil
	}, nil)
}
