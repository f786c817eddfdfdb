// Package authz holds the role and ownership rules for catalog writes and
// the row-visibility predicates applied to every tenant-scoped query.
package authz

import "github.com/acme/storefront/internal/domain"

// CanWriteCatalog reports whether the principal may create catalog rows.
// Categories are shared: any seller may create or edit any category.
func CanWriteCatalog(p domain.Principal) bool {
	return p.IsSeller()
}

// CanModifyProduct reports whether the principal may update or delete a
// product owned by sellerID. Sellers never touch each other's products.
func CanModifyProduct(p domain.Principal, sellerID string) bool {
	return p.IsSeller() && p.ID == sellerID
}
