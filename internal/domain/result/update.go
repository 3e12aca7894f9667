package result

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Update methods.
const (
	MethodAdd      = "add"
	MethodDelete   = "delete"
	MethodCommit   = "commit"
	MethodOptimize = "optimize"
)

// Update is the outcome of one update request. Failures are carried in Err
// together with the request body so the write can be deferred.
type Update struct {
	Method  string
	URL     string
	Payload string
	Status  int
	QTime   int
	Err     error
}

// OK reports whether the backend accepted the request.
func (u *Update) OK() bool { return u.Err == nil && u.Status == 0 }

// Failed builds an error result.
func Failed(method, url, payload string, err error) *Update {
	return &Update{Method: method, URL: url, Payload: payload, Status: 1, Err: err}
}

type xmlResponse struct {
	Lists []xmlList `xml:"lst"`
}

type xmlList struct {
	Name string     `xml:"name,attr"`
	Ints []xmlNamed `xml:"int"`
}

type xmlNamed struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// ParseUpdate decodes the XML response header of an update request.
func ParseUpdate(method, url, payload string, body []byte) *Update {
	u := &Update{Method: method, URL: url, Payload: payload}
	if len(strings.TrimSpace(string(body))) == 0 {
		u.Status = 1
		u.Err = parseError(url, errors.New("empty body"))
		return u
	}

	var resp xmlResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		u.Status = 1
		u.Err = parseError(url, err)
		return u
	}
	for _, l := range resp.Lists {
		if l.Name != "responseHeader" {
			continue
		}
		for _, n := range l.Ints {
			v, _ := strconv.Atoi(strings.TrimSpace(n.Value))
			switch n.Name {
			case "status":
				u.Status = v
			case "QTime":
				u.QTime = v
			}
		}
		if u.Status != 0 {
			u.Err = fmt.Errorf("backend status %d", u.Status)
		}
		return u
	}
	u.Status = 1
	u.Err = parseError(url, errors.New("missing responseHeader"))
	return u
}

// Updates is the outcome of a write and its chained commit.
type Updates []*Update

// OK reports whether every request succeeded.
func (us Updates) OK() bool {
	for _, u := range us {
		if !u.OK() {
			return false
		}
	}
	return true
}

// Failed returns the unsuccessful requests.
func (us Updates) Failed() []*Update {
	var out []*Update
	for _, u := range us {
		if !u.OK() {
			out = append(out, u)
		}
	}
	return out
}

// Err returns the first failure, or nil.
func (us Updates) Err() error {
	for _, u := range us {
		if !u.OK() {
			if u.Err != nil {
				return u.Err
			}
			return fmt.Errorf("%s: backend status %d", u.Method, u.Status)
		}
	}
	return nil
}
