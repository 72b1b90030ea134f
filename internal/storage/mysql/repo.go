package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tripquote/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

const dateLayout = "2006-01-02"

func scanDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ---- catalog ----

func (r *Repo) GetItem(ctx context.Context, id int64) (domain.CatalogItem, error) {
	row := r.db.QueryRowContext(ctx, getItemSQL, id)
	var it domain.CatalogItem
	if err := row.Scan(&it.ID, &it.Kind, &it.Name, &it.BasePrice, &it.Unit,
		&it.MinPax, &it.MaxPax, &it.Capacity); err != nil {
		if err == sql.ErrNoRows {
			return domain.CatalogItem{}, domain.ErrItemNotFound
		}
		return domain.CatalogItem{}, err
	}
	return it, nil
}

func (r *Repo) RatesForItem(ctx context.Context, id int64) ([]domain.SeasonalRate, error) {
	rows, err := r.db.QueryContext(ctx, ratesForItemSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SeasonalRate
	for rows.Next() {
		var sr domain.SeasonalRate
		var factor sql.NullString
		var override sql.NullInt64
		var created sql.NullTime
		if err := rows.Scan(&sr.ID, &sr.ItemID, &sr.Label, &sr.Start, &sr.End,
			&sr.Rule, &factor, &override, &sr.Priority, &created); err != nil {
			return nil, err
		}
		if factor.Valid {
			sr.Factor = scanDecimal(factor.String)
		}
		if override.Valid {
			sr.Override = override.Int64
		}
		if created.Valid {
			sr.Created = created.Time
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (r *Repo) UpsertItem(ctx context.Context, it domain.CatalogItem) error {
	_, err := r.db.ExecContext(ctx, upsertItemSQL,
		it.ID, string(it.Kind), it.Name, it.BasePrice, string(it.Unit),
		it.MinPax, it.MaxPax, it.Capacity)
	return err
}

func (r *Repo) UpsertRates(ctx context.Context, rs []domain.SeasonalRate) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*10)
	for _, sr := range rs {
		values = append(values, "(?,?,?,?,?,?,?,?,?,?)")
		var factor, created any
		if sr.Rule == domain.RuleMultiplier {
			factor = sr.Factor.String()
		}
		if !sr.Created.IsZero() {
			created = sr.Created
		}
		args = append(args,
			sr.ID, sr.ItemID, sr.Label,
			sr.Start.Format(dateLayout), sr.End.Format(dateLayout),
			string(sr.Rule), factor, sr.Override, sr.Priority, created,
		)
	}
	sqlStr := insertRatesPrefix + strings.Join(values, ",") + insertRatesOnDup
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) LogMiss(ctx context.Context, id int64, status int, reason string) error {
	_, err := r.db.ExecContext(ctx, insertMissSQL, id, status, reason)
	return err
}

// ---- agents ----

func (r *Repo) GetAgent(ctx context.Context, id int64) (domain.AgentSnapshot, error) {
	row := r.db.QueryRowContext(ctx, getAgentSQL, id)
	var a domain.AgentSnapshot
	var discount, commission string
	if err := row.Scan(&a.ID, &a.Tier, &a.DiscountKind, &discount, &commission); err != nil {
		if err == sql.ErrNoRows {
			return domain.AgentSnapshot{}, domain.ErrAgentNotFound
		}
		return domain.AgentSnapshot{}, err
	}
	a.DiscountRate = scanDecimal(discount)
	a.CommissionRate = scanDecimal(commission)
	return a, nil
}

// ---- quotes ----

func (r *Repo) Create(ctx context.Context, q domain.Quote) (domain.Quote, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Quote{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, insertQuoteSQL,
		q.AgentID, string(q.Status), string(q.MarkupType), q.MarkupValue.String(),
		q.Totals.Subtotal, q.Totals.TierDiscount, q.Totals.Markup,
		q.Totals.Total, q.Totals.Commission)
	if err != nil {
		return domain.Quote{}, err
	}
	q.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Quote{}, err
	}
	if err := insertItems(ctx, tx, q.ID, q.Items); err != nil {
		return domain.Quote{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Quote{}, err
	}
	q.Version = 1
	return q, nil
}

func (r *Repo) Load(ctx context.Context, id int64) (domain.Quote, error) {
	row := r.db.QueryRowContext(ctx, getQuoteSQL, id)
	var q domain.Quote
	var markupValue string
	if err := row.Scan(&q.ID, &q.AgentID, &q.Status, &q.MarkupType, &markupValue,
		&q.Totals.Subtotal, &q.Totals.TierDiscount, &q.Totals.Markup,
		&q.Totals.Total, &q.Totals.Commission,
		&q.Version, &q.CreatedAt, &q.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.Quote{}, domain.ErrQuoteNotFound
		}
		return domain.Quote{}, err
	}
	q.MarkupValue = scanDecimal(markupValue)

	rows, err := r.db.QueryContext(ctx, getQuoteItemsSQL, id)
	if err != nil {
		return domain.Quote{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.QuoteItem
		var segments []byte
		var lineSubtotal string
		if err := rows.Scan(&it.ID, &it.ItemID, &it.Kind, &it.Name, &it.Unit,
			&it.Start, &it.End, &it.Nights, &it.Quantity, &it.Pax,
			&segments, &lineSubtotal); err != nil {
			return domain.Quote{}, err
		}
		if len(segments) > 0 {
			if err := json.Unmarshal(segments, &it.Segments); err != nil {
				return domain.Quote{}, fmt.Errorf("quote %d item %d: decode segments: %w", id, it.ID, err)
			}
		}
		it.LineSubtotal = scanDecimal(lineSubtotal)
		q.Items = append(q.Items, it)
	}
	return q, rows.Err()
}

func (r *Repo) Save(ctx context.Context, q domain.Quote, expectedVersion int64) (domain.Quote, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Quote{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, updateQuoteSQL,
		string(q.MarkupType), q.MarkupValue.String(),
		q.Totals.Subtotal, q.Totals.TierDiscount, q.Totals.Markup,
		q.Totals.Total, q.Totals.Commission,
		q.ID, expectedVersion)
	if err != nil {
		return domain.Quote{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Quote{}, err
	}
	if n == 0 {
		return domain.Quote{}, r.missReason(ctx, q.ID)
	}

	if _, err := tx.ExecContext(ctx, deleteQuoteItemsSQL, q.ID); err != nil {
		return domain.Quote{}, err
	}
	if err := insertItems(ctx, tx, q.ID, q.Items); err != nil {
		return domain.Quote{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Quote{}, err
	}
	q.Version = expectedVersion + 1
	return q, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id int64, status domain.QuoteStatus, expectedVersion int64) error {
	res, err := r.db.ExecContext(ctx, updateStatusSQL, string(status), id, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.missReason(ctx, id)
	}
	return nil
}

// missReason disambiguates a zero-row guarded update: either the quote is
// gone or someone else moved its version.
func (r *Repo) missReason(ctx context.Context, id int64) error {
	var one int
	err := r.db.QueryRowContext(ctx, quoteExistsSQL, id).Scan(&one)
	if err == sql.ErrNoRows {
		return domain.ErrQuoteNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrVersionConflict
}

func insertItems(ctx context.Context, tx *sql.Tx, quoteID int64, items []domain.QuoteItem) error {
	for i := range items {
		segments, err := json.Marshal(items[i].Segments)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, insertQuoteItemSQL,
			quoteID, items[i].ItemID, string(items[i].Kind), items[i].Name, string(items[i].Unit),
			items[i].Start.Format(dateLayout), items[i].End.Format(dateLayout),
			items[i].Nights, items[i].Quantity, items[i].Pax,
			string(segments), items[i].LineSubtotal.String())
		if err != nil {
			return err
		}
		// Rows are rewritten wholesale on every save, so line IDs are
		// reassigned each time.
		if items[i].ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}
