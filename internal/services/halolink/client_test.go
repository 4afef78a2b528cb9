package halolink_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/halolink"
)

type wireMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type operationRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// fakePlatform speaks just enough of the Apollo graphql-ws protocol to serve
// canned responses keyed by a query substring.
type fakePlatform struct {
	t        *testing.T
	respond  func(op operationRequest) (string, string)
	requests []operationRequest
}

func (f *fakePlatform) handler() http.HandlerFunc {
	upgrader := websocket.Upgrader{Subprotocols: []string{"graphql-ws"}}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			f.t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var msg wireMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case "connection_init":
				if err := conn.WriteJSON(wireMessage{Type: "connection_ack"}); err != nil {
					return
				}
				// Keepalives must be tolerated by the client.
				_ = conn.WriteJSON(wireMessage{Type: "ka"})
			case "start":
				var op operationRequest
				if err := json.Unmarshal(msg.Payload, &op); err != nil {
					f.t.Errorf("decode operation: %v", err)
					return
				}
				f.requests = append(f.requests, op)
				data, gqlErr := f.respond(op)
				if gqlErr != "" {
					payload, _ := json.Marshal(map[string]any{
						"data":   nil,
						"errors": []map[string]string{{"message": gqlErr}},
					})
					_ = conn.WriteJSON(wireMessage{ID: msg.ID, Type: "data", Payload: payload})
				} else {
					payload, _ := json.Marshal(map[string]any{"data": json.RawMessage(data)})
					_ = conn.WriteJSON(wireMessage{ID: msg.ID, Type: "data", Payload: payload})
				}
				_ = conn.WriteJSON(wireMessage{ID: msg.ID, Type: "complete"})
			case "connection_terminate":
				return
			}
		}
	}
}

func dialFake(t *testing.T, respond func(op operationRequest) (string, string)) (*halolink.Client, *fakePlatform) {
	t.Helper()

	fake := &fakePlatform{t: t, respond: respond}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, err := halolink.Dial(context.Background(), halolink.Options{URL: wsURL, AccessToken: "tok"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, fake
}

func TestImagesInStudy(t *testing.T) {
	t.Parallel()

	client, fake := dialFake(t, func(op operationRequest) (string, string) {
		if !strings.Contains(op.Query, "studyByPk") {
			return "", "unexpected query"
		}
		return `{
			"studyByPk": {
				"pk": 42,
				"id": "study-42",
				"name": "Incoming",
				"studyImages": [
					{"image": {"pk": 1, "id": "img-1", "tag": "A1_2_BC1_sample.svs", "barcode": "BC1",
						"fieldValues": [{"value": "", "systemField": {"name": "Disease"}}]}},
					{"image": {"pk": 2, "id": "img-2", "tag": "A1_2_BC2_sample.svs", "barcode": "BC2",
						"fieldValues": [{"value": "MCD", "systemField": {"name": "Disease"}}]}}
				]
			}
		}`, ""
	})

	images, err := client.ImagesInStudy(context.Background(), 42)
	if err != nil {
		t.Fatalf("ImagesInStudy: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	if images[0].Tag != "A1_2_BC1_sample.svs" || images[0].Barcode != "BC1" {
		t.Fatalf("unexpected first image %+v", images[0])
	}
	if images[0].HasPopulatedField("Disease") {
		t.Fatal("empty field value should not count as populated")
	}
	if !images[1].HasPopulatedField("Disease") {
		t.Fatal("populated Disease field not detected")
	}
	if got := fake.requests[0].Variables["pk"]; got != float64(42) {
		t.Fatalf("expected pk variable 42, got %v", got)
	}
}

func TestUpdateFieldsSendsStableIdentifiers(t *testing.T) {
	t.Parallel()

	client, fake := dialFake(t, func(op operationRequest) (string, string) {
		return `{"updateImageFieldValues": {"pk": 7}}`, ""
	})

	updates := []halolink.FieldUpdate{
		{Field: halolink.FieldDisease, Value: "MCD"},
		{Field: halolink.FieldOrgan, Value: "Kidney"},
	}
	if err := client.UpdateFields(context.Background(), 7, updates); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	fields, ok := fake.requests[0].Variables["fields"].([]any)
	if !ok || len(fields) != 2 {
		t.Fatalf("expected 2 field entries, got %v", fake.requests[0].Variables["fields"])
	}
	first, _ := fields[0].(map[string]any)
	if first["field"] != "disease" || first["value"] != "MCD" {
		t.Fatalf("unexpected first field update %v", first)
	}
}

func TestGraphQLErrorsCarryPlatformMarker(t *testing.T) {
	t.Parallel()

	client, _ := dialFake(t, func(op operationRequest) (string, string) {
		return "", "permission denied"
	})

	err := client.MoveImage(context.Background(), 1, 10, 20)
	if !errors.Is(err, services.ErrPlatformUnavailable) {
		t.Fatalf("expected platform-unavailable marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("expected graphql message in error, got %v", err)
	}
}

func TestDialFailureIsSessionFatal(t *testing.T) {
	t.Parallel()

	_, err := halolink.Dial(context.Background(), halolink.Options{URL: "ws://127.0.0.1:1/graphql"})
	if !errors.Is(err, services.ErrPlatformUnavailable) {
		t.Fatalf("expected platform-unavailable marker, got %v", err)
	}
	if !services.Fatal(err) {
		t.Fatal("platform dial failure must abort the session")
	}
}
