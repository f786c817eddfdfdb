package authz

import (
	"strings"
	"testing"

	"github.com/acme/storefront/internal/domain"
)

func TestCanWriteCatalog(t *testing.T) {
	seller := domain.Principal{ID: "s1", Role: domain.RoleSeller}
	customer := domain.Principal{ID: "c1", Role: domain.RoleCustomer}

	if !CanWriteCatalog(seller) {
		t.Error("expected seller to be allowed catalog writes")
	}
	if CanWriteCatalog(customer) {
		t.Error("expected customer to be denied catalog writes")
	}
}

func TestCanModifyProduct(t *testing.T) {
	owner := domain.Principal{ID: "s1", Role: domain.RoleSeller}
	otherSeller := domain.Principal{ID: "s2", Role: domain.RoleSeller}
	customer := domain.Principal{ID: "s1", Role: domain.RoleCustomer}

	t.Run("owning seller allowed", func(t *testing.T) {
		if !CanModifyProduct(owner, "s1") {
			t.Error("expected owning seller to be allowed")
		}
	})

	t.Run("other seller denied", func(t *testing.T) {
		if CanModifyProduct(otherSeller, "s1") {
			t.Error("expected non-owning seller to be denied")
		}
	})

	t.Run("customer denied even when ids match", func(t *testing.T) {
		if CanModifyProduct(customer, "s1") {
			t.Error("expected customer to be denied regardless of ownership")
		}
	})
}

func TestTenantScope(t *testing.T) {
	seller := domain.Principal{ID: "s1", Role: domain.RoleSeller}

	pred := TenantScope(seller, 3)
	if pred.Where != "customer_id = $3" {
		t.Errorf("unexpected predicate: %s", pred.Where)
	}
	if len(pred.Args) != 1 || pred.Args[0] != "s1" {
		t.Errorf("unexpected args: %v", pred.Args)
	}
}

func TestOrderScope(t *testing.T) {
	t.Run("customer sees own orders", func(t *testing.T) {
		pred := OrderScope(domain.Principal{ID: "c1", Role: domain.RoleCustomer}, 1)
		if pred.Where != "orders.customer_id = $1" {
			t.Errorf("unexpected predicate: %s", pred.Where)
		}
		if pred.Args[0] != "c1" {
			t.Errorf("unexpected args: %v", pred.Args)
		}
	})

	t.Run("seller sees orders containing own products", func(t *testing.T) {
		pred := OrderScope(domain.Principal{ID: "s1", Role: domain.RoleSeller}, 1)
		if !strings.Contains(pred.Where, "pr.seller_id = $1") {
			t.Errorf("expected seller join predicate, got: %s", pred.Where)
		}
		if !strings.Contains(pred.Where, "EXISTS") {
			t.Errorf("expected EXISTS subquery, got: %s", pred.Where)
		}
	})

	t.Run("write scope is customer-only even for sellers", func(t *testing.T) {
		pred := OrderWriteScope(domain.Principal{ID: "s1", Role: domain.RoleSeller}, 2)
		if pred.Where != "orders.customer_id = $2" {
			t.Errorf("unexpected predicate: %s", pred.Where)
		}
	})
}
