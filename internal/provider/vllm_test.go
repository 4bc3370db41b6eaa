package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVLLMProviderListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("missing auth header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [{"id": "meta-llama/Llama-3-8b"}, {"id": "mistral-7b"}]}`))
	}))
	defer srv.Close()

	p := NewVLLMWithTemp("vllm", srv.URL, "meta-llama/Llama-3-8b", "test-key", Options{Temperature: 0.2})

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].Name != "meta-llama/Llama-3-8b" || models[1].Name != "mistral-7b" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestVLLMProviderListModelsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	p := NewVLLM(srv.URL, "m", "")
	if _, err := p.ListModels(context.Background()); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestVLLMFactoryCreatesNamedProvider(t *testing.T) {
	f := NewVLLMFactory("local-vllm", "http://localhost:8000/v1", "key")
	if f.Name() != "local-vllm" {
		t.Fatalf("Name() = %q", f.Name())
	}
	p := f.Create("mistral-7b", Options{Temperature: 0.5})
	vp, ok := p.(*VLLMProvider)
	if !ok {
		t.Fatalf("Create returned %T, want *VLLMProvider", p)
	}
	if vp.Name() != "local-vllm" {
		t.Fatalf("provider name = %q", vp.Name())
	}
}
