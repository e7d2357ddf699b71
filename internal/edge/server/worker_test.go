package server_test

import (
	"encoding/json"
	"net/url"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/common/configtypes"
	"github.com/toeverything/edge-workers/internal/common/redis"
	"github.com/toeverything/edge-workers/internal/edge/fetch"
	"github.com/toeverything/edge-workers/internal/edge/probe"
	"github.com/toeverything/edge-workers/internal/edge/server"
)

const (
	workerURL    = "http://worker.affine.test"
	telemetryURL = "http://telemetry.affine.test"
	allowed      = "https://affine.pro"
)

type preview struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	Favicons    []string `json:"favicons"`
	Videos      []string `json:"videos"`
	Charset     string   `json:"charset"`
}

func proxied(target string) string {
	return workerURL + "/api/worker/image-proxy?url=" + url.QueryEscape(target)
}

var _ = Describe("Edge worker", func() {
	var (
		up *upstream
		w  *worker
	)

	BeforeEach(func() {
		up = newUpstream()
		w = startWorker(workerConfig(), server.Dependencies{Fetcher: up})
	})

	AfterEach(func() {
		w.stop()
	})

	postPreview := func(originHdr, body string) (int, *fasthttp.ResponseHeader, []byte) {
		headers := map[string]string{fasthttp.HeaderContentType: "application/json"}
		if originHdr != "" {
			headers[fasthttp.HeaderOrigin] = originHdr
		}
		return w.do(fasthttp.MethodPost, workerURL+server.LinkPreviewPath, headers, body)
	}

	Describe("link preview", func() {
		It("fetches the canonical form of a bare host", func() {
			up.page(fasthttp.MethodGet, "http://example.com/", &fetch.Response{
				StatusCode: fasthttp.StatusOK,
				Body:       []byte(`<html><head><title>Example Domain</title><meta name="description" content="An example"></head></html>`),
				Headers:    map[string][]string{"Content-Type": {"text/html; charset=UTF-8"}},
			})

			status, header, body := postPreview(allowed, `{"url":"example.com"}`)
			Expect(status).To(Equal(fasthttp.StatusOK))
			Expect(string(header.Peek(fasthttp.HeaderAccessControlAllowOrigin))).To(Equal(allowed))
			Expect(up.count(fasthttp.MethodGet, "http://example.com/")).To(Equal(1))

			var md preview
			Expect(json.Unmarshal(body, &md)).To(Succeed())
			Expect(md.URL).To(Equal("http://example.com/"))
			Expect(md.Title).To(Equal("Example Domain"))
			Expect(md.Description).To(Equal("An example"))
			Expect(md.Charset).To(Equal("utf-8"))
			Expect(md.Images).To(BeEmpty())
			Expect(md.Videos).To(BeEmpty())
		})

		It("upgrades reachable resources and proxies the rest", func() {
			up.down["cdn.example.com"] = true
			up.page(fasthttp.MethodGet, "http://example.com/", &fetch.Response{
				StatusCode: fasthttp.StatusOK,
				Body: []byte(`<html><head>
<link rel="icon" href="http://cdn.example.com/icon.ico">
</head><body><img src="/a.png"><img src="https://secure.example.com/b.png"></body></html>`),
			})
			up.page(fasthttp.MethodHead, "http://example.com/favicon.ico", &fetch.Response{StatusCode: fasthttp.StatusOK})

			status, _, body := postPreview(allowed, `{"url":"http://example.com"}`)
			Expect(status).To(Equal(fasthttp.StatusOK))

			var md preview
			Expect(json.Unmarshal(body, &md)).To(Succeed())
			Expect(md.Images).To(Equal([]string{
				"https://example.com/a.png",
				"https://secure.example.com/b.png",
			}))
			Expect(md.Favicons).To(Equal([]string{
				proxied("http://cdn.example.com/icon.ico"),
				"https://example.com/favicon.ico",
			}))
		})

		It("answers 404 and never fetches for a disallowed origin", func() {
			status, header, body := postPreview("https://evil.example", `{"url":"example.com"}`)
			Expect(status).To(Equal(fasthttp.StatusNotFound))
			Expect(body).To(MatchJSON(`{"msg":"Not Found"}`))
			Expect(header.Peek(fasthttp.HeaderAccessControlAllowOrigin)).To(BeEmpty())
			Expect(up.requests).To(BeEmpty())
		})

		It("accepts an allowed referer without an origin", func() {
			headers := map[string]string{fasthttp.HeaderReferer: "https://app.affine.pro/workspace/1"}
			status, _, _ := w.do(fasthttp.MethodPost, workerURL+server.LinkPreviewPath, headers, `{"url":"localhost"}`)
			Expect(status).To(Equal(fasthttp.StatusBadRequest))
			Expect(up.requests).To(BeEmpty())
		})

		DescribeTable("rejects bad input before any fetch",
			func(body, msg string) {
				status, header, resp := postPreview(allowed, body)
				Expect(status).To(Equal(fasthttp.StatusBadRequest))
				Expect(resp).To(MatchJSON(`{"msg":"` + msg + `"}`))
				Expect(string(header.Peek(fasthttp.HeaderAccessControlAllowOrigin))).To(Equal(allowed))
				Expect(up.requests).To(BeEmpty())
			},
			Entry("malformed JSON", `{"url":`, "Invalid request body"),
			Entry("null body", `null`, "Invalid request body"),
			Entry("number url", `{"url":42}`, "Invalid URL"),
			Entry("ip literal", `{"url":"http://127.0.0.1/"}`, "Invalid URL"),
			Entry("bare suffix", `{"url":"co.uk"}`, "Invalid URL"),
			Entry("ftp scheme", `{"url":"ftp://example.com"}`, "Invalid URL"),
		)

		It("answers the CORS preflight on the deprecated path", func() {
			status, header, _ := w.do(fasthttp.MethodOptions, workerURL+server.DeprecatedLinkPreviewPath,
				map[string]string{fasthttp.HeaderOrigin: allowed}, "")
			Expect(status).To(Equal(fasthttp.StatusOK))
			Expect(string(header.Peek(fasthttp.HeaderAccessControlAllowOrigin))).To(Equal(allowed))
			Expect(string(header.Peek(fasthttp.HeaderAccessControlAllowMethods))).To(ContainSubstring(fasthttp.MethodPost))
		})
	})

	Describe("image proxy", func() {
		It("relays image bytes with the upstream status", func() {
			up.page(fasthttp.MethodGet, "http://img.example.com/cat.png", &fetch.Response{
				StatusCode: fasthttp.StatusOK,
				Body:       []byte("\x89PNG"),
				Headers:    map[string][]string{"Content-Type": {"image/png"}},
			})

			status, header, body := w.do(fasthttp.MethodGet, proxied("http://img.example.com/cat.png"),
				map[string]string{fasthttp.HeaderOrigin: allowed, fasthttp.HeaderAccept: "image/avif,image/webp"}, "")
			Expect(status).To(Equal(fasthttp.StatusOK))
			Expect(body).To(Equal([]byte("\x89PNG")))
			Expect(string(header.ContentType())).To(Equal("image/png"))
			Expect(string(header.Peek("X-Image-Format"))).To(Equal("avif"))
		})

		It("requires the url parameter", func() {
			status, _, body := w.do(fasthttp.MethodGet, workerURL+"/api/worker/image-proxy",
				map[string]string{fasthttp.HeaderOrigin: allowed}, "")
			Expect(status).To(Equal(fasthttp.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"msg":"Missing \"url\" parameter"}`))
		})

		It("rejects requests from unknown sites", func() {
			status, _, _ := w.do(fasthttp.MethodGet, proxied("http://img.example.com/cat.png"), nil, "")
			Expect(status).To(Equal(fasthttp.StatusNotFound))
			Expect(up.requests).To(BeEmpty())
		})
	})

	Describe("routing", func() {
		It("answers 404 for unknown hosts and prefixes", func() {
			status, _, body := w.do(fasthttp.MethodGet, "http://unknown.test/api/worker/link-preview", nil, "")
			Expect(status).To(Equal(fasthttp.StatusNotFound))
			Expect(body).To(MatchJSON(`{"msg":"Not Found"}`))

			status, _, _ = w.do(fasthttp.MethodGet, workerURL+"/static/app.js", nil, "")
			Expect(status).To(Equal(fasthttp.StatusNotFound))
		})

		It("answers 405 for unknown methods inside an app", func() {
			status, _, body := w.do(fasthttp.MethodPut, workerURL+server.LinkPreviewPath, nil, "")
			Expect(status).To(Equal(fasthttp.StatusMethodNotAllowed))
			Expect(body).To(MatchJSON(`{"msg":"Method Not Allowed"}`))
		})

		It("always returns a request id", func() {
			_, header, _ := w.do(fasthttp.MethodGet, "http://unknown.test/", map[string]string{"X-Request-ID": "trace-1"}, "")
			Expect(string(header.Peek("X-Request-ID"))).To(ContainSubstring("trace-1"))
		})
	})

	Describe("telemetry relay", func() {
		It("forwards POSTs with path and query to the upstream", func() {
			up.page(fasthttp.MethodPost, "https://api.mixpanel.test/track?ip=1&verbose=1", &fetch.Response{
				StatusCode: fasthttp.StatusOK,
				Body:       []byte("1"),
				Headers:    map[string][]string{"Content-Type": {"text/plain"}},
			})

			status, header, body := w.do(fasthttp.MethodPost, telemetryURL+"/track?ip=1&verbose=1",
				map[string]string{fasthttp.HeaderOrigin: allowed}, "data=eyJ9")
			Expect(status).To(Equal(fasthttp.StatusOK))
			Expect(string(body)).To(Equal("1"))
			Expect(string(header.Peek(fasthttp.HeaderAccessControlAllowOrigin))).To(Equal(allowed))

			last := up.last()
			Expect(last).NotTo(BeNil())
			Expect(string(last.Body)).To(Equal("data=eyJ9"))
			Expect(last.Headers).NotTo(HaveKey("Host"))
		})

		It("answers preflights with 204 and other methods with 405", func() {
			status, _, _ := w.do(fasthttp.MethodOptions, telemetryURL+"/track", map[string]string{fasthttp.HeaderOrigin: allowed}, "")
			Expect(status).To(Equal(fasthttp.StatusNoContent))

			status, _, _ = w.do(fasthttp.MethodGet, telemetryURL+"/track", nil, "")
			Expect(status).To(Equal(fasthttp.StatusMethodNotAllowed))
			Expect(up.requests).To(BeEmpty())
		})
	})
})

var _ = Describe("Shared HTTPS support store", func() {
	It("lets a second worker reuse the first worker's probe", func() {
		mr, err := miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)

		newStore := func() probe.SupportStore {
			client, err := redis.NewClient(&configtypes.RedisConfig{Addr: mr.Addr(), KeyPrefix: "hs:"}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(client.Close)
			return probe.NewRedisStore(client, zap.NewNop())
		}

		page := &fetch.Response{
			StatusCode: fasthttp.StatusOK,
			Body:       []byte(`<img src="http://pics.example.org/a.jpg">`),
		}

		first, second := newUpstream(), newUpstream()
		first.page(fasthttp.MethodGet, "http://example.org/", page)
		second.page(fasthttp.MethodGet, "http://example.org/", page)

		for _, up := range []*upstream{first, second} {
			w := startWorker(workerConfig(), server.Dependencies{Fetcher: up, Store: newStore()})
			status, _, body := w.do(fasthttp.MethodPost, workerURL+server.LinkPreviewPath,
				map[string]string{fasthttp.HeaderOrigin: allowed}, `{"url":"example.org"}`)
			w.stop()

			Expect(status).To(Equal(fasthttp.StatusOK))
			var md preview
			Expect(json.Unmarshal(body, &md)).To(Succeed())
			Expect(md.Images).To(Equal([]string{"https://pics.example.org/a.jpg"}))
		}

		Expect(first.count(fasthttp.MethodHead, "https://pics.example.org/")).To(Equal(1))
		Expect(second.count(fasthttp.MethodHead, "https://pics.example.org/")).To(Equal(0))
		Expect(mr.Exists("hs:pics.example.org")).To(BeTrue())
	})
})
