package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sluiceio/sluice/internal/common/uuid"
	"github.com/sluiceio/sluice/internal/config"
	"github.com/sluiceio/sluice/internal/journal"
	"github.com/sluiceio/sluice/pkg/api"
)

func TestGetVersion(t *testing.T) {
	req, _ := http.NewRequest("GET", "/version", nil)
	response := executeTestRequest(t, req)

	require.Equal(t, http.StatusOK, response.Code)
	checkHeader(t, response.Result().Header)

	rsp := &api.VersionResponse{}
	err := json.Unmarshal(response.Body.Bytes(), rsp)
	require.NoError(t, err, "Failed to unmarshal version response")
	assert.Contains(t, rsp.ServerVersion, Version)
	assert.Equal(t, APIVersion, rsp.APIVersion)
}

func TestGetReadiness(t *testing.T) {
	req, _ := http.NewRequest("GET", "/ready", nil)
	response := executeTestRequest(t, req)

	require.Equal(t, http.StatusOK, response.Code)
	checkHeader(t, response.Result().Header)

	rsp := &api.ReadyResponse{}
	err := json.Unmarshal(response.Body.Bytes(), rsp)
	require.NoError(t, err, "Failed to unmarshal readiness response")
	assert.Equal(t, "ready", rsp.Status)
}

func TestIsVersionCompatible(t *testing.T) {
	assert.True(t, IsVersionCompatible(Version))
	assert.False(t, IsVersionCompatible("0.0.1"))
	assert.False(t, IsVersionCompatible("not-a-version"))
}

func TestStreamLifecycle(t *testing.T) {
	reqBody := `
		{
			"name": "lifecycle-test",
			"capacity": 8
		}
	`
	// Create a New Request
	req, _ := http.NewRequest("POST", "/streams/", nil)
	// Set the request body
	setRequestBodyAndHeader(t, req, reqBody)
	// Execute Request
	response := executeTestRequest(t, req)

	// Check the response code
	require.Equal(t, http.StatusCreated, response.Code, "Response body: %s", response.Body.String())

	// Check headers
	checkHeader(t, response.Result().Header)

	// Get the stream location from the response
	location := response.Header().Get("Location")
	require.NotEmpty(t, location, "Location should not be empty")

	info := &api.StreamInfo{}
	err := json.Unmarshal(response.Body.Bytes(), info)
	require.NoError(t, err, "Failed to unmarshal stream info")
	require.Equal(t, "/streams/"+info.StreamID, location)
	assert.Equal(t, "lifecycle-test", info.Name)
	assert.Equal(t, "ready", info.Stats.State)
	assert.Equal(t, 8, info.Stats.Cap)

	// Get the stream
	streamReq, _ := http.NewRequest("GET", location, nil)
	response = executeTestRequest(t, streamReq)
	require.Equal(t, http.StatusOK, response.Code, "Expected status code 200 OK for stream retrieval")
	checkHeader(t, response.Result().Header)

	// Write elements to the stream
	req, _ = http.NewRequest("POST", location+"/elements", nil)
	setRequestBodyAndHeader(t, req, `{"elements": [1, "two", {"three": 3}]}`)
	response = executeTestRequest(t, req)
	require.Equal(t, http.StatusOK, response.Code, "Response body: %s", response.Body.String())
	checkHeader(t, response.Result().Header)

	wrsp := &api.ElementsWriteResponse{}
	err = json.Unmarshal(response.Body.Bytes(), wrsp)
	require.NoError(t, err, "Failed to unmarshal write response")
	assert.Equal(t, 3, wrsp.Written)

	// The drain loop consumes in the background, so the written elements
	// show up in the read counter shortly.
	require.Eventually(t, func() bool {
		streamReq, _ := http.NewRequest("GET", location, nil)
		response := executeTestRequest(t, streamReq)
		if response.Code != http.StatusOK {
			return false
		}
		info := &api.StreamInfo{}
		if err := json.Unmarshal(response.Body.Bytes(), info); err != nil {
			return false
		}
		return info.Stats.ItemsRead == 3
	}, 2*time.Second, 10*time.Millisecond, "elements were not drained")

	// Close the stream
	req, _ = http.NewRequest("DELETE", location, nil)
	response = executeTestRequest(t, req)
	require.Equal(t, http.StatusOK, response.Code, "Expected status code 200 OK for stream close")
	checkHeader(t, response.Result().Header)

	// Once the drain completes the stream is gone
	require.Eventually(t, func() bool {
		streamReq, _ := http.NewRequest("GET", location, nil)
		response := executeTestRequest(t, streamReq)
		return response.Code == http.StatusNotFound
	}, 2*time.Second, 10*time.Millisecond, "stream was not removed after close")

	// Closing again is a 404 now
	req, _ = http.NewRequest("DELETE", location, nil)
	response = executeTestRequest(t, req)
	require.Equal(t, http.StatusNotFound, response.Code, "Expected status code 404 for closing a finished stream")
}

func TestCreateStreamValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"negative capacity", `{"capacity": -1}`, http.StatusBadRequest},
		{"invalid name", `{"name": "Not A Valid Name"}`, http.StatusBadRequest},
		{"bad write timeout", `{"write_timeout": "fast"}`, http.StatusBadRequest},
		{"negative write timeout", `{"write_timeout": "-5s"}`, http.StatusBadRequest},
		{"malformed body", `{"capacity": `, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("POST", "/streams/", nil)
			setRequestBodyAndHeader(t, req, tt.body)
			response := executeTestRequest(t, req)
			assert.Equal(t, tt.wantCode, response.Code, "Response body: %s", response.Body.String())
		})
	}
}

func TestWriteElementsValidation(t *testing.T) {
	req, _ := http.NewRequest("POST", "/streams/", nil)
	setRequestBodyAndHeader(t, req, `{"capacity": 8}`)
	response := executeTestRequest(t, req)
	require.Equal(t, http.StatusCreated, response.Code)
	location := response.Header().Get("Location")

	// Empty batch
	req, _ = http.NewRequest("POST", location+"/elements", nil)
	setRequestBodyAndHeader(t, req, `{"elements": []}`)
	response = executeTestRequest(t, req)
	assert.Equal(t, http.StatusBadRequest, response.Code)

	// A hole in the batch is rejected without faulting the stream
	req, _ = http.NewRequest("POST", location+"/elements", nil)
	setRequestBodyAndHeader(t, req, `{"elements": [1, null, 3]}`)
	response = executeTestRequest(t, req)
	assert.Equal(t, http.StatusUnprocessableEntity, response.Code, "Response body: %s", response.Body.String())

	// The stream is still healthy after the rejected batch
	streamReq, _ := http.NewRequest("GET", location, nil)
	response = executeTestRequest(t, streamReq)
	require.Equal(t, http.StatusOK, response.Code)
	info := &api.StreamInfo{}
	err := json.Unmarshal(response.Body.Bytes(), info)
	require.NoError(t, err)
	assert.Equal(t, "ready", info.Stats.State)

	// Clean up
	req, _ = http.NewRequest("DELETE", location, nil)
	executeTestRequest(t, req)
}

func TestWriteElementsOverrun(t *testing.T) {
	req, _ := http.NewRequest("POST", "/streams/", nil)
	setRequestBodyAndHeader(t, req, `{"capacity": 2}`)
	response := executeTestRequest(t, req)
	require.Equal(t, http.StatusCreated, response.Code)
	location := response.Header().Get("Location")

	// A batch larger than capacity faults the stream
	req, _ = http.NewRequest("POST", location+"/elements", nil)
	setRequestBodyAndHeader(t, req, `{"elements": [1, 2, 3, 4, 5]}`)
	response = executeTestRequest(t, req)
	assert.Equal(t, http.StatusTooManyRequests, response.Code, "Response body: %s", response.Body.String())

	// The faulted stream tears down and disappears from the registry
	require.Eventually(t, func() bool {
		streamReq, _ := http.NewRequest("GET", location, nil)
		response := executeTestRequest(t, streamReq)
		return response.Code == http.StatusNotFound
	}, 2*time.Second, 10*time.Millisecond, "errored stream was not removed")
}

func TestStreamNotFound(t *testing.T) {
	missing := "/streams/" + uuid.New().String()

	req, _ := http.NewRequest("GET", missing, nil)
	response := executeTestRequest(t, req)
	require.Equal(t, http.StatusNotFound, response.Code)

	req, _ = http.NewRequest("DELETE", missing, nil)
	response = executeTestRequest(t, req)
	require.Equal(t, http.StatusNotFound, response.Code)

	req, _ = http.NewRequest("POST", missing+"/elements", nil)
	setRequestBodyAndHeader(t, req, `{"elements": [1]}`)
	response = executeTestRequest(t, req)
	require.Equal(t, http.StatusNotFound, response.Code)

	req, _ = http.NewRequest("GET", "/streams/not-a-uuid", nil)
	response = executeTestRequest(t, req)
	require.Equal(t, http.StatusBadRequest, response.Code)
}

func TestTapStream(t *testing.T) {
	req, _ := http.NewRequest("POST", "/streams/", nil)
	setRequestBodyAndHeader(t, req, `{"capacity": 8}`)
	response := executeTestRequest(t, req)
	require.Equal(t, http.StatusCreated, response.Code)
	location := response.Header().Get("Location")

	// The tap streams until the stream finishes, so it runs on its own
	// goroutine while the test drives the stream lifecycle.
	type tapResult struct {
		code int
		body string
	}
	results := make(chan tapResult, 1)
	go func() {
		tapReq, _ := http.NewRequest("GET", location+"/tap", nil)
		tapRsp := executeTestRequest(t, tapReq)
		results <- tapResult{code: tapRsp.Code, body: tapRsp.Body.String()}
	}()

	// Give the tap a moment to attach before producing
	time.Sleep(100 * time.Millisecond)

	req, _ = http.NewRequest("POST", location+"/elements", nil)
	setRequestBodyAndHeader(t, req, `{"elements": ["a", "b", "c"]}`)
	response = executeTestRequest(t, req)
	require.Equal(t, http.StatusOK, response.Code)

	req, _ = http.NewRequest("DELETE", location, nil)
	response = executeTestRequest(t, req)
	require.Equal(t, http.StatusOK, response.Code)

	var tap tapResult
	select {
	case tap = <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("tap did not finish after stream close")
	}
	require.Equal(t, http.StatusOK, tap.code)

	var elements []any
	var lifecycle []string
	for _, chunk := range strings.Split(tap.body, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		require.True(t, strings.HasPrefix(chunk, "data: "), "unexpected tap chunk: %q", chunk)
		event := &api.TapEvent{}
		err := json.Unmarshal([]byte(strings.TrimPrefix(chunk, "data: ")), event)
		require.NoError(t, err, "Failed to unmarshal tap event")
		switch event.Kind {
		case api.TapElement:
			elements = append(elements, event.Element)
		case api.TapLifecycle:
			lifecycle = append(lifecycle, event.State)
		}
	}
	assert.Equal(t, []any{"a", "b", "c"}, elements)
	require.Len(t, lifecycle, 1)
	assert.Equal(t, "closed", lifecycle[0])
}

func TestJournaledStream(t *testing.T) {
	req, _ := http.NewRequest("POST", "/streams/", nil)
	setRequestBodyAndHeader(t, req, `{"capacity": 8, "journal": true}`)
	response := executeTestRequest(t, req)
	require.Equal(t, http.StatusCreated, response.Code, "Response body: %s", response.Body.String())

	info := &api.StreamInfo{}
	err := json.Unmarshal(response.Body.Bytes(), info)
	require.NoError(t, err)
	require.NotEmpty(t, info.Journal, "journal path should be reported")
	location := "/streams/" + info.StreamID

	req, _ = http.NewRequest("POST", location+"/elements", nil)
	setRequestBodyAndHeader(t, req, `{"elements": [1, 2]}`)
	response = executeTestRequest(t, req)
	require.Equal(t, http.StatusOK, response.Code)

	req, _ = http.NewRequest("DELETE", location, nil)
	response = executeTestRequest(t, req)
	require.Equal(t, http.StatusOK, response.Code)

	require.Eventually(t, func() bool {
		streamReq, _ := http.NewRequest("GET", location, nil)
		response := executeTestRequest(t, streamReq)
		return response.Code == http.StatusNotFound
	}, 2*time.Second, 10*time.Millisecond, "stream was not removed after close")

	// The sealed journal verifies end to end and carries the lifecycle
	result, err := journal.VerifyFile(info.Journal, config.Config().Journal.MaxLineSize)
	require.NoError(t, err, "journal verification failed")
	require.GreaterOrEqual(t, result.Entries, 4)

	var kinds []journal.EventKind
	err = journal.ReplayFile(info.Journal, config.Config().Journal.MaxLineSize, func(rec journal.Record) error {
		kinds = append(kinds, rec.Event)
		return nil
	})
	require.NoError(t, err, "journal replay failed")
	require.NotEmpty(t, kinds)
	assert.Equal(t, journal.EventStreamCreated, kinds[0])
	assert.Equal(t, journal.EventClosed, kinds[len(kinds)-1])
	assert.Contains(t, kinds, journal.EventWrite)
	assert.Contains(t, kinds, journal.EventCloseRequested)
}
