package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store is the Postgres-backed persistence for profiles, plans, subscriptions
// and the payment idempotency ledger.
type Store struct {
	db *sql.DB
}

func New(conn *sql.DB) *Store { return &Store{db: conn} }

const subscriptionColumns = `id, user_id, plan_id, status, current_period_start, current_period_end, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var s Subscription
	var status string
	err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, err
	}
	s.Status = SubscriptionStatus(status)
	return s, nil
}

func scanPlan(row rowScanner) (Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.Name, &p.JobLimit, &p.Price, &p.Currency, pq.Array(&p.Features))
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, ErrNotFound
	}
	return p, err
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindUserIDByEmail resolves a profile email, case-insensitively, to its user id.
func (s *Store) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM profiles WHERE lower(email) = lower($1)`, strings.TrimSpace(email)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup profile by email: %w", err)
	}
	return id, nil
}

// GetPlan loads one subscription plan.
func (s *Store) GetPlan(ctx context.Context, id string) (Plan, error) {
	p, err := scanPlan(s.db.QueryRowContext(ctx,
		`SELECT id, name, job_limit, price, currency, features FROM subscription_plans WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Plan{}, fmt.Errorf("get plan %s: %w", id, err)
	}
	return p, err
}

// ListPlans returns the plan catalogue ordered by price.
func (s *Store) ListPlans(ctx context.Context) ([]Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, job_limit, price, currency, features FROM subscription_plans ORDER BY price, id`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// RecordOrder stores a freshly created provider order. Recording the same order
// id twice is an error.
func (s *Store) RecordOrder(ctx context.Context, o Order) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, provider, plan_id, user_email, amount, currency, receipt)
		 VALUES ($1, $2, $3, lower($4), $5, $6, $7)`,
		o.ID, o.Provider, o.PlanID, strings.TrimSpace(o.UserEmail), o.Amount, o.Currency, o.Receipt)
	if err != nil {
		return fmt.Errorf("record order %s: %w", o.ID, err)
	}
	return nil
}

// GetOrder loads a recorded order or returns ErrNotFound.
func (s *Store) GetOrder(ctx context.Context, id string) (Order, error) {
	var o Order
	err := s.db.QueryRowContext(ctx,
		`SELECT id, provider, plan_id, user_email, amount, currency, receipt, created_at FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Provider, &o.PlanID, &o.UserEmail, &o.Amount, &o.Currency, &o.Receipt, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func getSubscription(ctx context.Context, q queryer, id string) (Subscription, error) {
	return scanSubscription(q.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
}

// ActivateSubscription cancels every active subscription of the user and inserts
// a new active one, in a single transaction. The profile row is locked first so
// concurrent activations for one user run one after the other.
//
// When p.Payment is set and that (order, payment) pair was already applied, the
// subscription created the first time is returned with replayed = true and
// nothing is written.
func (s *Store) ActivateSubscription(ctx context.Context, p ActivateParams) (sub Subscription, replayed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Subscription{}, false, fmt.Errorf("begin activation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM profiles WHERE id = $1 FOR UPDATE`, p.UserID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, false, ErrNotFound
	}
	if err != nil {
		return Subscription{}, false, fmt.Errorf("lock profile: %w", err)
	}

	if p.Payment != nil {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO payment_events (order_id, payment_id, provider, user_id)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (order_id, payment_id) DO NOTHING`,
			p.Payment.OrderID, p.Payment.PaymentID, p.Payment.Provider, p.UserID)
		if err != nil {
			return Subscription{}, false, fmt.Errorf("record payment event: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Subscription{}, false, fmt.Errorf("record payment event: %w", err)
		}
		if n == 0 {
			existing, err := replayedSubscription(ctx, tx, p.Payment)
			if err != nil {
				return Subscription{}, false, err
			}
			if err := tx.Commit(); err != nil {
				return Subscription{}, false, fmt.Errorf("commit replay lookup: %w", err)
			}
			return existing, true, nil
		}
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE subscriptions SET status = $2, updated_at = $3 WHERE user_id = $1 AND status = $4`,
		p.UserID, string(StatusCancelled), p.PeriodStart, string(StatusActive)); err != nil {
		return Subscription{}, false, fmt.Errorf("supersede active subscriptions: %w", err)
	}

	sub, err = scanSubscription(tx.QueryRowContext(ctx,
		`INSERT INTO subscriptions (id, user_id, plan_id, status, current_period_start, current_period_end, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $5, $5)
		 RETURNING `+subscriptionColumns,
		uuid.NewString(), p.UserID, p.PlanID, string(StatusActive), p.PeriodStart, p.PeriodEnd))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return Subscription{}, false, fmt.Errorf("insert subscription: second active subscription rejected: %w", err)
		}
		return Subscription{}, false, fmt.Errorf("insert subscription: %w", err)
	}

	if p.Payment != nil {
		if _, err = tx.ExecContext(ctx,
			`UPDATE payment_events SET subscription_id = $3 WHERE order_id = $1 AND payment_id = $2`,
			p.Payment.OrderID, p.Payment.PaymentID, sub.ID); err != nil {
			return Subscription{}, false, fmt.Errorf("link payment event: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Subscription{}, false, fmt.Errorf("commit activation: %w", err)
	}
	return sub, false, nil
}

func replayedSubscription(ctx context.Context, tx *sql.Tx, ref *PaymentRef) (Subscription, error) {
	var subID sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT subscription_id FROM payment_events WHERE order_id = $1 AND payment_id = $2`,
		ref.OrderID, ref.PaymentID).Scan(&subID)
	if err != nil {
		return Subscription{}, fmt.Errorf("load payment event: %w", err)
	}
	if !subID.Valid {
		return Subscription{}, fmt.Errorf("payment event %s/%s has no subscription", ref.OrderID, ref.PaymentID)
	}
	sub, err := getSubscription(ctx, tx, subID.String)
	if err != nil {
		return Subscription{}, fmt.Errorf("load replayed subscription: %w", err)
	}
	return sub, nil
}

// GetActiveSubscription returns the user's active subscription or ErrNotFound.
func (s *Store) GetActiveSubscription(ctx context.Context, userID string) (Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 AND status = $2`,
		userID, string(StatusActive)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Subscription{}, fmt.Errorf("get active subscription: %w", err)
	}
	return sub, err
}

// ListSubscriptions returns every subscription row of the user, newest first.
func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CancelActiveSubscriptions flips the user's active subscriptions to cancelled
// and reports how many rows changed.
func (s *Store) CancelActiveSubscriptions(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = $2, updated_at = now() WHERE user_id = $1 AND status = $3`,
		userID, string(StatusCancelled), string(StatusActive))
	if err != nil {
		return 0, fmt.Errorf("cancel subscriptions: %w", err)
	}
	return res.RowsAffected()
}
