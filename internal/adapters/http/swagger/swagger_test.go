package swagger_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"

	"github.com/okian/lootrota/internal/adapters/http/api"
	"github.com/okian/lootrota/internal/adapters/http/swagger"
	"github.com/okian/lootrota/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type openAPIDoc struct {
	OpenAPI string                    `yaml:"openapi"`
	Paths   map[string]map[string]any `yaml:"paths"`
}

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a router with the docs routes", t, func() {
		r := chi.NewRouter()
		swagger.Register(r)

		convey.Convey("Then /openapi.yaml serves the embedded document", func() {
			req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
			convey.So(w.Body.Len(), convey.ShouldEqual, len(swagger.OpenAPI))
		})

		convey.Convey("Then /api-docs serves the ReDoc page", func() {
			req := httptest.NewRequest(http.MethodGet, "/api-docs", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "redoc-container")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, swagger.RedocScriptURL)
		})
	})

	convey.Convey("Given a nil router", t, func() {
		convey.So(func() { swagger.Register(nil) }, convey.ShouldPanic)
	})
}

func TestOpenAPICoversRoutes(t *testing.T) {
	convey.Convey("Given the embedded OpenAPI document and the API router", t, func() {
		var doc openAPIDoc
		convey.So(yaml.Unmarshal(swagger.OpenAPI, &doc), convey.ShouldBeNil)
		convey.So(doc.OpenAPI, convey.ShouldStartWith, "3.")

		router, ok := api.NewServer(nil, nil).Router().(chi.Routes)
		convey.So(ok, convey.ShouldBeTrue)

		convey.Convey("Then every route and method is documented", func() {
			err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
				if route == "/metrics" {
					convey.So(doc.Paths, convey.ShouldContainKey, route)
					return nil
				}
				convey.So(doc.Paths, convey.ShouldContainKey, route)
				convey.So(doc.Paths[route], convey.ShouldContainKey, strings.ToLower(method))
				return nil
			})
			convey.So(err, convey.ShouldBeNil)
		})
	})
}
