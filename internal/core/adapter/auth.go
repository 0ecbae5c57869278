package adapter

import "net/http"

// Authenticator injects retailer credentials into an outgoing request.
// Which shape a retailer needs is decided at adapter construction, not per
// call.
type Authenticator interface {
	Apply(req *http.Request)
}

// QueryKeyAuth appends the API key as a query parameter, the Best Buy shape.
type QueryKeyAuth struct {
	Param string
	Key   string
}

func (a QueryKeyAuth) Apply(req *http.Request) {
	if a.Param == "" || a.Key == "" {
		return
	}
	q := req.URL.Query()
	q.Set(a.Param, a.Key)
	req.URL.RawQuery = q.Encode()
}

// HeaderAuth sets one custom header per credential, the Walmart affiliate
// shape.
type HeaderAuth struct {
	Headers map[string]string
}

func (a HeaderAuth) Apply(req *http.Request) {
	for name, value := range a.Headers {
		if name == "" || value == "" {
			continue
		}
		req.Header.Set(name, value)
	}
}

// BearerAuth sets an Authorization bearer header, the TCGplayer shape.
type BearerAuth struct {
	Token string
}

func (a BearerAuth) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}
