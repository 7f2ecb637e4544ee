package scc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) (*HTTPClient, string) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	outputDir := t.TempDir()
	client, err := NewHTTPClient(Settings{
		BaseURL:      server.URL,
		Username:     "station",
		Password:     "secret",
		OutputDir:    outputDir,
		PollInterval: 1,
	})
	require.NoError(t, err)
	return client, outputDir
}

func TestLogin(t *testing.T) {
	var gotUser, gotPass string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/login", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotUser = r.PostFormValue("username")
		gotPass = r.PostFormValue("password")
	}))

	require.NoError(t, client.Login(context.Background()))
	assert.Equal(t, "station", gotUser)
	assert.Equal(t, "secret", gotPass)
}

func TestLoginRejected(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	require.Error(t, client.Login(context.Background()))
}

func TestExists(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/measurements/20230615buc0000":
			fmt.Fprint(w, `{"id": "20230615buc0000"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	exists, err := client.Exists(context.Background(), "20230615buc0000")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.Exists(context.Background(), "20230615buc0001")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpload(t *testing.T) {
	var gotSystem, gotReplace, gotFile string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/measurements/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))

		gotSystem = r.FormValue("system")
		gotReplace = r.FormValue("replace")

		file, header, err := r.FormFile("data")
		require.NoError(t, err)
		defer file.Close()
		gotFile = header.Filename
	}))

	path := filepath.Join(t.TempDir(), "20230615buc0000.nc")
	require.NoError(t, os.WriteFile(path, []byte("netcdf"), 0o644))

	require.NoError(t, client.Upload(context.Background(), path, "312", true))
	assert.Equal(t, "312", gotSystem)
	assert.Equal(t, "true", gotReplace)
	assert.Equal(t, "20230615buc0000.nc", gotFile)
}

func TestUploadServerError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	path := filepath.Join(t.TempDir(), "m.nc")
	require.NoError(t, os.WriteFile(path, []byte("netcdf"), 0o644))

	require.Error(t, client.Upload(context.Background(), path, "312", false))
}

func TestMonitorProcessingPollsUntilTerminal(t *testing.T) {
	polls := 0
	client, outputDir := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/measurements/20230615buc0000/status":
			polls++
			if polls < 3 {
				fmt.Fprintf(w, `{"elpp": %d, "elda": %d}`, StatusOK, StatusInProgress)
				return
			}
			fmt.Fprintf(w, `{"elpp": %d, "elda": %d}`, StatusOK, StatusOK)
		case "/measurements/20230615buc0000/download":
			w.Write([]byte("zip archive bytes"))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))

	result, err := client.MonitorProcessing(context.Background(), "20230615buc0000")
	require.NoError(t, err)

	assert.Equal(t, 3, polls)
	assert.True(t, result.Succeeded())

	products := filepath.Join(outputDir, "20230615buc0000", "products.zip")
	data, err := os.ReadFile(products)
	require.NoError(t, err)
	assert.Equal(t, "zip archive bytes", string(data))
}

func TestMonitorProcessingReportsFailure(t *testing.T) {
	client, outputDir := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"elpp": %d, "elda": %d}`, StatusFailed, StatusNotStarted)
	}))

	result, err := client.MonitorProcessing(context.Background(), "20230615buc0000")
	require.NoError(t, err)
	assert.False(t, result.Succeeded())

	// No products must be fetched for a failed chain.
	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProductVersion(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/measurements/20230615buc0000/version", r.URL.Path)
		fmt.Fprint(w, `{"scc_version": "SCC vers. 5.2.7"}`)
	}))

	version, err := client.ProductVersion(context.Background(), "20230615buc0000")
	require.NoError(t, err)
	assert.Equal(t, "SCC vers. 5.2.7", version)
}

func TestProductVersionMissing(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))

	_, err := client.ProductVersion(context.Background(), "20230615buc0000")
	require.Error(t, err)
}
