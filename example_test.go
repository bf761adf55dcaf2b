package easyhttp_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/adamwoolhether/easyhttp"
)

func ExampleDo() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"msg":"hello"}`)
	}))
	defer ts.Close()

	b := easyhttp.NewEasyBuilder().
		URL(ts.URL).
		Timeout(5 * time.Second)

	var resp struct{ Msg string }
	if err := easyhttp.Do(context.Background(), b, http.StatusOK, easyhttp.WithDestination(&resp)); err != nil {
		fmt.Println("do error:", err)
		return
	}

	fmt.Println(resp.Msg)
	// Output: hello
}
