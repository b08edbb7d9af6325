// Package routes wires the commerce API endpoints to their handlers.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/inkwave/commerce-api/internal/http/handlers"
	"github.com/inkwave/commerce-api/internal/http/mw"
)

// Handlers aggregates the handler instances used by Register.
type Handlers struct {
	Readyz     *handlers.ReadyzHandler
	Catalog    *handlers.CatalogHandler
	Balance    *handlers.BalanceHandler
	Voucher    *handlers.VoucherHandler
	Order      *handlers.OrderHandler
	Membership *handlers.MembershipHandler
	Admin      *handlers.AdminHandler
}

// Register registers all API routes with the given Huma API instance.
func Register(api huma.API, h *Handlers) {
	// =========================================================================
	// Public Routes (no auth required)
	// =========================================================================

	mw.PublicGet(api, "/api/v1/health", handlers.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))

	mw.PublicGet(api, "/api/v1/catalog/coins", h.Catalog.ListCoinPackages,
		mw.WithTags("Catalog"),
		mw.WithSummary("List coin packages"),
		mw.WithOperationID("listCoinPackages"))
	mw.PublicGet(api, "/api/v1/catalog/memberships", h.Catalog.ListMembershipPackages,
		mw.WithTags("Catalog"),
		mw.WithSummary("List membership packages"),
		mw.WithOperationID("listMembershipPackages"))

	// Kubernetes probes (hidden from docs - internal use only)
	mw.HiddenGet(api, "/healthz", handlers.Livez)
	mw.HiddenGet(api, "/readyz", h.Readyz.Readyz)

	// =========================================================================
	// Protected Routes (require bearer auth)
	// =========================================================================

	// --- Wallet ---
	mw.ProtectedGet(api, "/api/v1/balance", h.Balance.GetBalance,
		mw.WithTags("Wallet"),
		mw.WithSummary("Get coin balance"),
		mw.WithOperationID("getBalance"))
	mw.ProtectedGet(api, "/api/v1/transactions", h.Balance.GetHistory,
		mw.WithTags("Wallet"),
		mw.WithSummary("Get transaction history"),
		mw.WithOperationID("getHistory"))
	mw.ProtectedPost(api, "/api/v1/purchases/content", h.Balance.PurchaseContent,
		mw.WithTags("Wallet"),
		mw.WithSummary("Spend coins on content"),
		mw.WithDescription("Unlocks a chapter or buys an ebook with coins. The coin price comes from the content catalog service."),
		mw.WithOperationID("purchaseContent"))

	// --- Vouchers ---
	mw.ProtectedPost(api, "/api/v1/vouchers/evaluate", h.Voucher.EvaluateVoucher,
		mw.WithTags("Vouchers"),
		mw.WithSummary("Evaluate a voucher"),
		mw.WithDescription("Previews the discount without consuming a use. Invalid codes return valid=false with the rejection reason."),
		mw.WithOperationID("evaluateVoucher"))

	// --- Orders ---
	mw.ProtectedPost(api, "/api/v1/orders", h.Order.CreateOrder,
		mw.WithTags("Orders"),
		mw.WithSummary("Create an order"),
		mw.WithOperationID("createOrder"))
	mw.ProtectedGet(api, "/api/v1/orders", h.Order.ListOrders,
		mw.WithTags("Orders"),
		mw.WithSummary("List orders"),
		mw.WithOperationID("listOrders"))
	mw.ProtectedGet(api, "/api/v1/orders/{id}", h.Order.GetOrder,
		mw.WithTags("Orders"),
		mw.WithSummary("Get order status"),
		mw.WithOperationID("getOrder"))
	mw.ProtectedPost(api, "/api/v1/orders/{id}/cancel", h.Order.CancelOrder,
		mw.WithTags("Orders"),
		mw.WithSummary("Cancel a pending order"),
		mw.WithOperationID("cancelOrder"))

	// --- Membership ---
	mw.ProtectedGet(api, "/api/v1/membership", h.Membership.GetMembership,
		mw.WithTags("Membership"),
		mw.WithSummary("Get membership status"),
		mw.WithOperationID("getMembership"))

	// =========================================================================
	// Admin Routes (require bearer auth + operator flag)
	// =========================================================================

	mw.ProtectedPost(api, "/api/v1/admin/grants", h.Admin.GrantCoins,
		mw.WithAdmin(),
		mw.WithTags("Admin"),
		mw.WithSummary("Grant coins to a user"),
		mw.WithOperationID("adminGrantCoins"))
	mw.ProtectedGet(api, "/api/v1/admin/stats", h.Admin.GetStats,
		mw.WithAdmin(),
		mw.WithTags("Admin"),
		mw.WithSummary("Platform statistics"),
		mw.WithOperationID("adminGetStats"))
	mw.ProtectedGet(api, "/api/v1/admin/reconcile/{user_id}", h.Admin.ReconcileUser,
		mw.WithAdmin(),
		mw.WithTags("Admin"),
		mw.WithSummary("Reconcile a user balance"),
		mw.WithOperationID("adminReconcileUser"))

	mw.ProtectedGet(api, "/api/v1/admin/vouchers", h.Admin.ListVouchers,
		mw.WithAdmin(),
		mw.WithTags("Admin"),
		mw.WithSummary("List vouchers"),
		mw.WithOperationID("adminListVouchers"))
	mw.ProtectedPut(api, "/api/v1/admin/vouchers", h.Admin.UpsertVoucher,
		mw.WithAdmin(),
		mw.WithTags("Admin"),
		mw.WithSummary("Create or update a voucher"),
		mw.WithOperationID("adminUpsertVoucher"))
	mw.ProtectedDelete(api, "/api/v1/admin/vouchers/{code}", h.Admin.DeleteVoucher,
		mw.WithAdmin(),
		mw.WithTags("Admin"),
		mw.WithSummary("Delete a voucher"),
		mw.WithOperationID("adminDeleteVoucher"))

	mw.ProtectedPut(api, "/api/v1/admin/packages/coins", h.Admin.UpsertCoinPackage,
		mw.WithAdmin(),
		mw.WithTags("Admin"),
		mw.WithSummary("Create or update a coin package"),
		mw.WithOperationID("adminUpsertCoinPackage"))
	mw.ProtectedPut(api, "/api/v1/admin/packages/membership", h.Admin.UpsertMembershipPackage,
		mw.WithAdmin(),
		mw.WithTags("Admin"),
		mw.WithSummary("Create or update a membership package"),
		mw.WithOperationID("adminUpsertMembershipPackage"))
}
