package authz

import (
	"fmt"

	"github.com/acme/storefront/internal/domain"
)

// Predicate is a SQL fragment restricting a query to rows the principal may
// see. Repositories splice it into both reads and writes, so a row outside
// the scope behaves exactly like a missing row.
type Predicate struct {
	Where string
	Args  []any
}

// TenantScope limits cart and wishlist rows to the requesting customer,
// regardless of role. pos is the first free placeholder number.
func TenantScope(p domain.Principal, pos int) Predicate {
	return Predicate{
		Where: fmt.Sprintf("customer_id = $%d", pos),
		Args:  []any{p.ID},
	}
}

// OrderScope limits order visibility: customers see their own orders,
// sellers see orders containing at least one of their products.
func OrderScope(p domain.Principal, pos int) Predicate {
	if p.IsSeller() {
		return Predicate{
			Where: fmt.Sprintf(`EXISTS (
				SELECT 1 FROM order_items oi
				JOIN products pr ON pr.id = oi.product_id
				WHERE oi.order_id = orders.id AND pr.seller_id = $%d
			)`, pos),
			Args: []any{p.ID},
		}
	}
	return Predicate{
		Where: fmt.Sprintf("orders.customer_id = $%d", pos),
		Args:  []any{p.ID},
	}
}

// OrderWriteScope limits order mutations to the owning customer. Sellers get
// read access through OrderScope but may not update or delete.
func OrderWriteScope(p domain.Principal, pos int) Predicate {
	return Predicate{
		Where: fmt.Sprintf("orders.customer_id = $%d", pos),
		Args:  []any{p.ID},
	}
}

// SellerProductScope limits products to those the seller owns, for the
// seller's own management view.
func SellerProductScope(p domain.Principal, pos int) Predicate {
	return Predicate{
		Where: fmt.Sprintf("seller_id = $%d", pos),
		Args:  []any{p.ID},
	}
}
