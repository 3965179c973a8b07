package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                    "/",
		"/metrics":                            "/metrics",
		"/v1/expenses":                        "/v1/expenses",
		"/v1/expenses/01ABC":                  "/v1/expenses/:id",
		"/v1/expenses/01ABC/payment-requests": "/v1/expenses/:id/payment-requests",
		"/v1/expenses/01ABC/extra":            "/v1/expenses/01ABC/extra",
		"/v1/payment-requests/sent":           "/v1/payment-requests/sent",
		"/v1/payment-requests/received":       "/v1/payment-requests/received",
		"/v1/payment-requests/01DEF/pay":      "/v1/payment-requests/:id/pay",
		"/v1/payment-requests/sent?limit=10":  "/v1/payment-requests/sent",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
