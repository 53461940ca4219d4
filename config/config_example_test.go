package config

import (
	"testing"
)

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("MEDIA_SERVICE_URL", "http://media.internal:9090")

	result, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Config.Client.ServiceURL != "http://media.internal:9090" {
		t.Errorf("expected service URL http://media.internal:9090, got %s", result.Config.Client.ServiceURL)
	}
}
