package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/gridclash/internal/gridclient"
	"github.com/valyala/fasthttp"
)

func main() {
	baseURL := strings.TrimRight(os.Getenv("GRID_BASE_URL"), "/")
	userID := os.Getenv("X_USER_ID")
	if baseURL == "" {
		log.Fatal("GRID_BASE_URL is required")
	}

	status, body, err := fasthttp.GetTimeout(nil, baseURL+"/healthz", 5*time.Second)
	if err != nil {
		log.Printf("/healthz error: %v", err)
	} else {
		log.Printf("/healthz status=%d body=%s", status, strings.TrimSpace(string(body)))
	}

	if userID == "" {
		log.Println("X_USER_ID not set; skipping WS check")
		return
	}

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	c, err := gridclient.Dial(cctx, wsURL, userID)
	if err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	c.OnFrame(func(f gridclient.Frame) {
		fmt.Printf("WS event type=%s data=%s\n", f.Type, f.Data)
	})

	if err := c.FindMatch(cctx); err != nil {
		log.Printf("find_match error: %v", err)
	}

	// Observe for a short window, then leave the queue.
	t := time.NewTimer(10 * time.Second)
	<-t.C
	_ = c.CancelMatch(context.Background())

	closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = c.Close(closeCtx)
}
