package app

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	setAzureEnv(t)
	t.Setenv("STORAGE_BACKEND", "postgres")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("必須環境変数が未設定の場合はエラーが返されるべき")
	}
	if !strings.Contains(err.Error(), "initialization failed") {
		t.Errorf("初期化エラーが返されるべき: %v", err)
	}
}

func TestRun_MigrateRequiresPostgres(t *testing.T) {
	setAzureEnv(t)

	var buf bytes.Buffer
	err := Run(&buf, []string{"migrate"})
	if err == nil {
		t.Fatal("azureバックエンドでのmigrateはエラーになるべき")
	}
	if !strings.Contains(err.Error(), "STORAGE_BACKEND") {
		t.Errorf("エラーメッセージに STORAGE_BACKEND が含まれるべき: %v", err)
	}
}

func TestRun_IngestWithoutSearchCredentials_ReturnsError(t *testing.T) {
	setAzureEnv(t)

	var buf bytes.Buffer
	err := Run(&buf, []string{"ingest"})
	if err == nil {
		t.Fatal("SERPER_API_KEY 未設定のingestはエラーになるべき")
	}
	if !strings.Contains(err.Error(), "SERPER_API_KEY") {
		t.Errorf("エラーメッセージに SERPER_API_KEY が含まれるべき: %v", err)
	}
}

func TestRun_WorkerWithoutSearchCredentials_ReturnsError(t *testing.T) {
	setAzureEnv(t)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"worker"}); err == nil {
		t.Fatal("SERPER_API_KEY 未設定のworkerはエラーになるべき")
	}
}

func TestRun_Healthcheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("ポートの取得に失敗: %v", err)
	}
	t.Setenv("SERVER_PORT", port)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"healthcheck"}); err != nil {
		t.Errorf("Run(healthcheck) がエラーを返した: %v", err)
	}
}

func TestRunHealthcheck_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("ポートの取得に失敗: %v", err)
	}

	err = runHealthcheck(port)
	if err == nil {
		t.Fatal("503の場合はエラーが返されるべき")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("エラーメッセージにステータスコードが含まれるべき: %v", err)
	}
}
