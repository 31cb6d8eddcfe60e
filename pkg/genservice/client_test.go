package genservice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	sharedhttp "github.com/jqsirls/character-canary/pkg/shared/http"
)

func newTestClient(server *httptest.Server) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return &Client{
		BaseURL:          server.URL,
		AuthBasePath:     AuthPrefixAPI,
		SnapshotBasePath: "/public/v1",
		HTTP:             sharedhttp.NewDefaultClient(),
		Log:              logger,
	}
}

var _ = Describe("Client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("ProbeReady", func() {
		It("should return the status code on any response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/ready"))
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			status, err := newTestClient(server).ProbeReady(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
		})

		It("should surface transport failures", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			client := newTestClient(server)
			server.Close()

			_, err := client.ProbeReady(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("DetectAuthPrefix", func() {
		It("should pick /api/v1 when it answers non-404", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/api/v1/auth/login" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			prefix, detected := newTestClient(server).DetectAuthPrefix(ctx)
			Expect(detected).To(BeTrue())
			Expect(prefix).To(Equal("/api/v1"))
		})

		It("should fall through to /v1 when /api/v1 is 404", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v1/auth/login" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			prefix, detected := newTestClient(server).DetectAuthPrefix(ctx)
			Expect(detected).To(BeTrue())
			Expect(prefix).To(Equal("/v1"))
		})

		It("should default to /api/v1 when both are 404", func() {
			server := httptest.NewServer(http.NotFoundHandler())
			defer server.Close()

			prefix, detected := newTestClient(server).DetectAuthPrefix(ctx)
			Expect(detected).To(BeFalse())
			Expect(prefix).To(Equal("/api/v1"))
		})
	})

	Describe("Login", func() {
		It("should decode the token payload", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/v1/auth/login"))
				Expect(r.Method).To(Equal(http.MethodPost))

				var creds map[string]string
				Expect(json.NewDecoder(r.Body).Decode(&creds)).To(Succeed())
				Expect(creds["email"]).To(Equal("canary@example.com"))

				json.NewEncoder(w).Encode(LoginResult{AccessToken: "tok-1", TokenType: "bearer"})
			}))
			defer server.Close()

			result, status, err := newTestClient(server).Login(ctx, "canary@example.com", "pw")
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(result.AccessToken).To(Equal("tok-1"))
		})

		It("should return the status without a result on auth failure", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))
			defer server.Close()

			result, status, err := newTestClient(server).Login(ctx, "canary@example.com", "bad")
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(result).To(BeNil())
		})
	})

	Describe("Invoke", func() {
		It("should post the action envelope and decode images", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/v1/ai/invoke"))
				Expect(r.Header.Get("Authorization")).To(Equal("Bearer tok-1"))

				var envelope map[string]interface{}
				Expect(json.NewDecoder(r.Body).Decode(&envelope)).To(Succeed())
				Expect(envelope["action"]).To(Equal(ActionCompleteCreation))
				Expect(envelope["async"]).To(BeFalse())

				json.NewEncoder(w).Encode(InvokeResult{
					CharacterID: "char-1",
					Images: []InvokeImage{
						{Type: "headshot", URL: "https://cdn.example.com/h.png", PromptHash: "hash-h"},
					},
				})
			}))
			defer server.Close()

			result, err := newTestClient(server).Invoke(ctx, "tok-1", ActionCompleteCreation, map[string]string{"name": "Ember"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.CharacterID).To(Equal("char-1"))

			image := result.ImageFor("headshot")
			Expect(image).NotTo(BeNil())
			Expect(image.PromptHash).To(Equal("hash-h"))
			Expect(result.ImageFor("bodyshot")).To(BeNil())
		})

		It("should fail on non-2xx", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			}))
			defer server.Close()

			_, err := newTestClient(server).Invoke(ctx, "tok-1", ActionGenerateArt, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("status 500"))
		})
	})

	Describe("EnqueueEdit", func() {
		It("should mark the invocation async", func() {
			var envelope map[string]interface{}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(json.NewDecoder(r.Body).Decode(&envelope)).To(Succeed())
				w.WriteHeader(http.StatusAccepted)
			}))
			defer server.Close()

			err := newTestClient(server).EnqueueEdit(ctx, "tok-1", EditRequest{
				CharacterID: "char-1",
				AttemptID:   "att-2",
				AssetType:   "bodyshot",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(envelope["action"]).To(Equal(ActionEditImage))
			Expect(envelope["async"]).To(BeTrue())

			payload := envelope["payload"].(map[string]interface{})
			Expect(payload["attemptId"]).To(Equal("att-2"))
		})
	})

	Describe("FetchSnapshot", func() {
		It("should record an ok receipt from the snapshot prefix", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/public/v1/characters/char-1"))
				json.NewEncoder(w).Encode(map[string]interface{}{"id": "char-1", "name": "Ember"})
			}))
			defer server.Close()

			receipt, err := newTestClient(server).FetchSnapshot(ctx, "tok-1", "char-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.OK).To(BeTrue())
			Expect(receipt.Prefix).To(Equal("/public/v1"))
			Expect(receipt.Data).To(HaveKeyWithValue("id", "char-1"))
		})

		It("should retry under the auth prefix on 404", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/public/v1/characters/char-1" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				Expect(r.URL.Path).To(Equal("/api/v1/characters/char-1"))
				json.NewEncoder(w).Encode(map[string]interface{}{"id": "char-1"})
			}))
			defer server.Close()

			receipt, err := newTestClient(server).FetchSnapshot(ctx, "tok-1", "char-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.OK).To(BeTrue())
			Expect(receipt.Prefix).To(Equal("/api/v1"))
		})

		It("should return non-404 failures as-is without falling back", func() {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer server.Close()

			receipt, err := newTestClient(server).FetchSnapshot(ctx, "tok-1", "char-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.OK).To(BeFalse())
			Expect(receipt.Status).To(Equal(http.StatusInternalServerError))
			Expect(receipt.Prefix).To(Equal("/public/v1"))
			Expect(calls).To(Equal(1))
		})
	})
})

var _ = Describe("FindTposeKey", func() {
	It("should find a top-level tpose key", func() {
		path, found := FindTposeKey(map[string]interface{}{"tposeUrl": "x"})
		Expect(found).To(BeTrue())
		Expect(path).To(Equal("tposeUrl"))
	})

	It("should find a nested tpose key case-insensitively", func() {
		payload := map[string]interface{}{
			"character": map[string]interface{}{
				"rig": map[string]interface{}{"TPoseAsset": "x"},
			},
		}
		path, found := FindTposeKey(payload)
		Expect(found).To(BeTrue())
		Expect(path).To(Equal("character.rig.TPoseAsset"))
	})

	It("should search inside arrays", func() {
		payload := map[string]interface{}{
			"images": []interface{}{
				map[string]interface{}{"tpose_variant": true},
			},
		}
		_, found := FindTposeKey(payload)
		Expect(found).To(BeTrue())
	})

	It("should pass clean payloads", func() {
		_, found := FindTposeKey(map[string]interface{}{"pose": "standing", "url": "x"})
		Expect(found).To(BeFalse())
	})
})

var _ = Describe("PeekIssuer", func() {
	makeToken := func(claims map[string]interface{}) string {
		payload, err := json.Marshal(claims)
		Expect(err).NotTo(HaveOccurred())
		segment := base64.RawURLEncoding.EncodeToString(payload)
		return "eyJhbGciOiJIUzI1NiJ9." + segment + ".sig"
	}

	It("should extract the issuer claim", func() {
		token := makeToken(map[string]interface{}{"iss": "https://abc.supabase.co/auth/v1"})
		Expect(PeekIssuer(token)).To(Equal("https://abc.supabase.co/auth/v1"))
	})

	It("should return empty for malformed tokens", func() {
		Expect(PeekIssuer("not-a-jwt")).To(BeEmpty())
		Expect(PeekIssuer("a.b")).To(BeEmpty())
		Expect(PeekIssuer("a.!!!.c")).To(BeEmpty())
	})
})
