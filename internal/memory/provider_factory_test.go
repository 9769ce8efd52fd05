package memory

import "testing"

func TestBuildProvider_LocalByDefault(t *testing.T) {
	fp, err := BuildProvider(ProviderConfig{})
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}
	if fp.ID() != "local" {
		t.Errorf("expected local provider by default, got %s", fp.ID())
	}
}

func TestBuildProvider_FallsBackOnConstructionFailure(t *testing.T) {
	fp, err := BuildProvider(ProviderConfig{
		Provider: "openai", // missing API key -> construction fails
		Fallback: "local",
	})
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}
	status := fp.Status()
	if !status.Fallback || status.Provider != "local" {
		t.Errorf("expected fallback to local, got %+v", status)
	}
}

func TestBuildProvider_NoFallbackPropagatesError(t *testing.T) {
	_, err := BuildProvider(ProviderConfig{Provider: "openai"})
	if err == nil {
		t.Fatal("expected error when primary fails and no fallback is configured")
	}
}

func TestBuildProvider_UnknownProvider(t *testing.T) {
	_, err := BuildProvider(ProviderConfig{Provider: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for unknown provider name")
	}
}
