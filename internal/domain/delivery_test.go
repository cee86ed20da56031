package domain

import (
	"errors"
	"strings"
	"testing"
)

func validDelivery() Delivery {
	return Delivery{
		ID:           "d-1",
		From:         "+358000000000",
		To:           "+358401234567",
		Status:       StatusInitiated,
		CallbackData: strings.Repeat("a", CallbackDataLength),
	}
}

func TestDeliveryValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(d *Delivery)
		wantErr bool
	}{
		{name: "valid delivery", mutate: func(d *Delivery) {}},
		{name: "missing sender", mutate: func(d *Delivery) { d.From = "" }, wantErr: true},
		{name: "missing recipient", mutate: func(d *Delivery) { d.To = "" }, wantErr: true},
		{name: "recipient with scheme prefix", mutate: func(d *Delivery) { d.To = "tel:+358401234567" }, wantErr: true},
		{name: "sender with scheme prefix", mutate: func(d *Delivery) { d.From = "tel:+358000000000" }, wantErr: true},
		{name: "short callback data", mutate: func(d *Delivery) { d.CallbackData = "abc123" }, wantErr: true},
		{name: "non-alphanumeric callback data", mutate: func(d *Delivery) {
			d.CallbackData = strings.Repeat("a", CallbackDataLength-1) + "!"
		}, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := validDelivery()
			tc.mutate(&d)

			err := d.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestNormalizePhoneNumber(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want string
	}{
		{in: "tel:+358401234567", want: "+358401234567"},
		{in: "+358401234567", want: "+358401234567"},
		{in: "  tel:+358401234567  ", want: "+358401234567"},
		{in: "", want: ""},
	}

	for _, tc := range testCases {
		if got := NormalizePhoneNumber(tc.in); got != tc.want {
			t.Errorf("NormalizePhoneNumber(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeCarrierStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want Status
	}{
		{in: "DeliveredToTerminal", want: "delivered_to_terminal"},
		{in: "DeliveryImpossible", want: "delivery_impossible"},
		{in: "deliveredToNetwork", want: "delivered_to_network"},
		{in: "MessageWaiting", want: "message_waiting"},
		{in: "sent", want: "sent"},
		{in: "  DeliveryUncertain ", want: "delivery_uncertain"},
		{in: "", want: ""},
	}

	for _, tc := range testCases {
		if got := NormalizeCarrierStatus(tc.in); got != tc.want {
			t.Errorf("NormalizeCarrierStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
