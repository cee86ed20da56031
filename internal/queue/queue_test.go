package queue

import (
	"context"
	"testing"
	"time"

	"github.com/viesti/telia-gateway/internal/telia"
)

func TestValidateTask(t *testing.T) {
	t.Parallel()

	valid := telia.RetryTask{
		PhoneNumber: "+358401112222",
		Code:        "123456",
		Tenant:      telia.Tenant{SenderAddress: "+358501234567", NotifyBaseURL: "https://verify.example.com"},
	}

	tests := []struct {
		name    string
		mutate  func(task *telia.RetryTask)
		wantErr bool
	}{
		{"valid", func(task *telia.RetryTask) {}, false},
		{"missing phone", func(task *telia.RetryTask) { task.PhoneNumber = " " }, true},
		{"missing code", func(task *telia.RetryTask) { task.Code = "" }, true},
		{"missing sender", func(task *telia.RetryTask) { task.Tenant.SenderAddress = "" }, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			task := valid
			tt.mutate(&task)
			err := validateTask(task)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateTask() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryPublisherRequiresClient(t *testing.T) {
	t.Parallel()

	p := NewRetryPublisher(nil)
	err := p.Schedule(context.Background(), telia.RetryTask{
		PhoneNumber: "+358401112222",
		Code:        "123456",
		Tenant:      telia.Tenant{SenderAddress: "+358501234567"},
	}, time.Second)
	if err == nil {
		t.Fatal("Schedule() with no client should fail")
	}
}

func TestNewRabbitMQRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRabbitMQ("  "); err == nil {
		t.Fatal("NewRabbitMQ() with a blank url should fail")
	}
}
