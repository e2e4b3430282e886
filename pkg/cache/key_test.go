package cache

import "testing"

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "auth key",
			key:  AuthKey,
			want: "storefront:session:auth",
		},
		{
			name: "cart key",
			key:  CartKey,
			want: "storefront:session:cart",
		},
		{
			name: "scoped key",
			key:  CartKey.WithScope("localhost:5000"),
			want: "storefront:session:cart:localhost:5000",
		},
		{
			name: "name and scope are normalized",
			key:  Key{Name: " Cart ", Scope: "Shop.Example.COM"},
			want: "storefront:session:cart:shop.example.com",
		},
		{
			name: "empty key",
			key:  Key{},
			want: "storefront:session",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_WithScopeDoesNotMutate(t *testing.T) {
	scoped := AuthKey.WithScope("a")
	if AuthKey.Scope != "" {
		t.Errorf("AuthKey.Scope = %q, want empty", AuthKey.Scope)
	}
	if scoped.String() == AuthKey.String() {
		t.Error("scoped key should differ from unscoped key")
	}
}
