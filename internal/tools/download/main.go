// Command download fetches a QuickJS WASI guest for the quickjs engine and
// its tests:
//
//	go run ./internal/tools/download -sha256 <hex> <url> qjs.wasm
//	COLLIDER_QUICKJS_WASM=$PWD/qjs.wasm go test ./renderer/quickjs
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

func main() {
	sum := flag.String("sha256", "", "Expected SHA-256 of the download (hex)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: download [-sha256 hex] <url> <output>")
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	if err := download(flag.Arg(0), flag.Arg(1), *sum); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// download writes url to output unless output already exists. The file only
// appears once the body is complete and matches sum.
func download(url, output, sum string) error {
	if _, err := os.Stat(output); err == nil {
		return nil
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(output), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if sum != "" {
		if got := hex.EncodeToString(h.Sum(nil)); got != sum {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, sum)
		}
	}
	return os.Rename(tmp.Name(), output)
}
