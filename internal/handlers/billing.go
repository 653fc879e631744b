package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/stresscall/stresscall-backend/internal/database"
	"github.com/stresscall/stresscall-backend/internal/models"
)

// CheckoutResponse carries the Stripe-hosted checkout URL back to the client.
type CheckoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
}

func writeBillingError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(CheckoutResponse{Success: false, Message: message})
}

// CreateCheckout starts a Stripe Checkout session upgrading the signed-in
// account to the premium tier.
func CreateCheckout(w http.ResponseWriter, r *http.Request) {
	accountID := currentAccount(r)
	if accountID == nil {
		writeBillingError(w, http.StatusUnauthorized, "Sign in to upgrade")
		return
	}

	if billingConfig.StripeSecretKey == "" || billingConfig.StripePremiumPriceID == "" {
		writeBillingError(w, http.StatusInternalServerError, "Billing is not configured")
		return
	}

	customerID, err := ensureBillingCustomer(r.Context(), *accountID)
	if err != nil {
		log.Printf("⚠️  Billing customer setup failed for account %s: %v", accountID, err)
		writeBillingError(w, http.StatusInternalServerError, "Failed to prepare billing")
		return
	}

	frontendURL := strings.TrimRight(billingConfig.FrontendURL, "/")
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(billingConfig.StripePremiumPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/stress-check?upgraded=true"),
		CancelURL:  stripe.String(frontendURL + "/stress-check"),
	}

	sess, err := session.New(params)
	if err != nil {
		log.Printf("⚠️  Stripe checkout session failed: %v", err)
		writeBillingError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CheckoutResponse{Success: true, URL: sess.URL})
}

// StripeWebhook processes subscription lifecycle events. A completed checkout
// moves the account to premium; a deleted subscription drops it back to free.
func StripeWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeBillingError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	if billingConfig.StripeWebhookSecret == "" {
		log.Println("⚠️  Stripe webhook secret missing")
		writeBillingError(w, http.StatusInternalServerError, "Webhook not configured")
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		r.Header.Get("Stripe-Signature"),
		billingConfig.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		log.Printf("⚠️  Stripe webhook signature verification failed: %v", err)
		writeBillingError(w, http.StatusBadRequest, "Signature verification failed")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			writeBillingError(w, http.StatusBadRequest, "Invalid session payload")
			return
		}
		if err := setTierByStripeCustomer(r.Context(), stripeCustomerID(sess.Customer), models.TierPremium); err != nil {
			log.Printf("⚠️  Premium upgrade failed: %v", err)
			writeBillingError(w, http.StatusInternalServerError, "Failed to update subscription")
			return
		}

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			writeBillingError(w, http.StatusBadRequest, "Invalid subscription payload")
			return
		}
		if err := setTierByStripeCustomer(r.Context(), stripeCustomerID(sub.Customer), models.TierFree); err != nil {
			log.Printf("⚠️  Downgrade failed: %v", err)
			writeBillingError(w, http.StatusInternalServerError, "Failed to update subscription")
			return
		}

	default:
		// Unhandled event types are acknowledged and ignored.
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func stripeCustomerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// ensureBillingCustomer finds or creates the Stripe Customer mapped to the
// account in billing_customers.
func ensureBillingCustomer(ctx context.Context, accountID uuid.UUID) (string, error) {
	var existing string
	err := database.PostgresDB.QueryRowContext(ctx,
		"SELECT stripe_customer_id FROM billing_customers WHERE account_id = $1",
		accountID,
	).Scan(&existing)
	if err == nil && existing != "" {
		return existing, nil
	}
	if err != nil && err != sql.ErrNoRows {
		return "", err
	}

	var email string
	if err := database.PostgresDB.QueryRowContext(ctx,
		"SELECT email FROM accounts WHERE id = $1", accountID,
	).Scan(&email); err != nil {
		return "", err
	}

	cust, err := customer.New(&stripe.CustomerParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"account_id": accountID.String()},
	})
	if err != nil {
		return "", err
	}

	if _, err := database.PostgresDB.ExecContext(ctx,
		"INSERT INTO billing_customers (account_id, stripe_customer_id) VALUES ($1, $2)",
		accountID, cust.ID,
	); err != nil {
		return "", err
	}
	return cust.ID, nil
}

// setTierByStripeCustomer resolves the account behind a Stripe customer and
// updates its subscription tier on the profile.
func setTierByStripeCustomer(ctx context.Context, customerID string, tier models.SubscriptionTier) error {
	if customerID == "" {
		return sql.ErrNoRows
	}
	var accountID uuid.UUID
	if err := database.PostgresDB.QueryRowContext(ctx,
		"SELECT account_id FROM billing_customers WHERE stripe_customer_id = $1",
		customerID,
	).Scan(&accountID); err != nil {
		return err
	}
	return profileService.SetTier(ctx, accountID.String(), tier)
}
