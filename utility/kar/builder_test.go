// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAddAndWrite(t *testing.T) {
	builder, err := NewBuilder(Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer builder.Close()

	if err := builder.Add("test2", strings.NewReader("idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb")); err != nil {
		t.Error(err)
	}
	if err := builder.Add("test", strings.NewReader("idunvovkjnreovmegihjbrqlkmfrjnb")); err != nil {
		t.Error(err)
	}

	if len(builder.files) != 2 {
		t.Error("incorrect number of files present")
	}

	var buf bytes.Buffer
	num, err := builder.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if num != int64(buf.Len()) {
		t.Errorf("reported %d bytes, wrote %d", num, buf.Len())
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte(Magic)) {
		t.Error("archive does not start with magic")
	}
	if builder.files[0].Name != "test" {
		t.Error("files are not ordered by name")
	}
}

func TestAddConcurrent(t *testing.T) {
	builder, err := NewBuilder(Header{Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer builder.Close()

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := builder.Add(name, strings.NewReader(strings.Repeat(name, 100))); err != nil {
				t.Error(err)
			}
		}(name)
	}
	wg.Wait()

	if builder.Len() != 4 {
		t.Errorf("expected 4 files, got %d", builder.Len())
	}
}

func TestHeaderLength(t *testing.T) {
	num, err := binaryToint64(int64ToBinary(1234567))
	if err != nil {
		t.Fatal(err)
	}
	if num != 1234567 {
		t.Errorf("expected 1234567, got %d", num)
	}
	if _, err := binaryToint64([]byte{1, 2}); err != ErrFileFormat {
		t.Error("short length should be a format error")
	}
}
