// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devblok/vkframe/utility/kar"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	builder, err := kar.NewBuilder(kar.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer builder.Close()

	for name, content := range files {
		if err := builder.Add(name, strings.NewReader(content)); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if _, err := builder.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	data := buildArchive(t, map[string]string{"test": testString1, "test2": testString2})

	ar, err := kar.Open(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	f, err := ar.Open("test2")
	if err != nil {
		t.Fatal(err)
	}
	if f.Size() != int64(len(testString2)) {
		t.Errorf("expected size %d, got %d", len(testString2), f.Size())
	}

	result, err := ioutil.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(result) != testString2 {
		t.Error("test string does not match up")
	}
}

func TestCreateAndReadAll(t *testing.T) {
	data := buildArchive(t, map[string]string{"test": testString1, "test2": testString2})

	ar, err := kar.Open(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	names := ar.Names()
	if len(names) != 2 || names[0] != "test" || names[1] != "test2" {
		t.Errorf("unexpected names %v", names)
	}
	if ar.Header().Author != "devblok" {
		t.Error("header author was not kept")
	}

	for name, expected := range map[string]string{"test": testString1, "test2": testString2} {
		f, err := ar.ReadAll(name)
		if err != nil {
			t.Fatal(err)
		}
		if string(f) != expected {
			t.Errorf("%s does not match up", name)
		}
	}
}

func TestOpenMissing(t *testing.T) {
	ar, err := kar.Open(bytes.NewReader(buildArchive(t, map[string]string{"test": testString1})))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ar.ReadAll("nope"); err != kar.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenNotArchive(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		[]byte("KAR"),
		[]byte("TAR\x00\x01\x00\x00\x00\x00\x00\x00\x00x"),
		[]byte("KAR\x00\xff\x00\x00\x00\x00\x00\x00\x00x"),
	} {
		if _, err := kar.Open(bytes.NewReader(data)); err != kar.ErrFileFormat {
			t.Errorf("%q: expected ErrFileFormat, got %v", data, err)
		}
	}
}

func rawArchive(t *testing.T, header kar.Header, body []byte) []byte {
	t.Helper()
	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(header); err != nil {
		t.Fatal(err)
	}
	size := make([]byte, kar.HeaderSizeNumberLength)
	binary.LittleEndian.PutUint64(size, uint64(encoded.Len()))

	out := append([]byte(kar.Magic), size...)
	out = append(out, encoded.Bytes()...)
	return append(out, body...)
}

func TestOpenHugeHeaderSize(t *testing.T) {
	for _, size := range []uint64{0x7fffffffffffffff, kar.MaxHeaderSize + 1, 1 << 40} {
		data := []byte(kar.Magic)
		num := make([]byte, kar.HeaderSizeNumberLength)
		binary.LittleEndian.PutUint64(num, size)
		data = append(data, num...)
		data = append(data, "header"...)

		if _, err := kar.Open(bytes.NewReader(data)); err != kar.ErrFileFormat {
			t.Errorf("header size %d: expected ErrFileFormat, got %v", size, err)
		}
	}
}

func TestOpenBadIndex(t *testing.T) {
	for name, entry := range map[string]kar.IndexEntry{
		"negative size":       {Name: "a", Size: -1, CompressedSize: 4},
		"negative compressed": {Name: "a", Size: 4, CompressedSize: -1},
		"negative offset":     {Name: "a", Offset: -8, Size: 4, CompressedSize: 4},
		"huge size":           {Name: "a", Size: 0x7fffffffffffffff, CompressedSize: 4},
		"past the end":        {Name: "a", Offset: 2, Size: 4, CompressedSize: 4},
		"huge offset":         {Name: "a", Offset: 0x7fffffffffffffff, Size: 4, CompressedSize: 4},
	} {
		data := rawArchive(t, kar.Header{Author: "devblok", Index: []kar.IndexEntry{entry}}, []byte("abcd"))
		if _, err := kar.Open(bytes.NewReader(data)); err != kar.ErrFileFormat {
			t.Errorf("%s: expected ErrFileFormat, got %v", name, err)
		}
	}
}

func TestExtractOutsideDir(t *testing.T) {
	dir, err := ioutil.TempDir("", "kartest")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "out")

	for _, name := range []string{"../escaped.txt", "test/../../escaped.txt", ".."} {
		ar, err := kar.Open(bytes.NewReader(buildArchive(t, map[string]string{
			"a.txt": "inside",
			name:    "outside",
		})))
		if err != nil {
			t.Fatal(err)
		}
		if err := ar.Extract(out); err != kar.ErrFileFormat {
			t.Errorf("%q: expected ErrFileFormat, got %v", name, err)
		}
		if _, err := os.Stat(filepath.Join(dir, "escaped.txt")); !os.IsNotExist(err) {
			t.Errorf("%q: file was written outside the target dir", name)
		}
		if _, err := os.Stat(filepath.Join(out, "a.txt")); !os.IsNotExist(err) {
			t.Errorf("%q: extraction was not aborted", name)
		}
	}
}

func TestOpenFileAndExtract(t *testing.T) {
	dir, err := ioutil.TempDir("", "kartest")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "opentest.kar")
	data := buildArchive(t, map[string]string{
		"test/test1.txt": "this is a test",
		"test/test2.txt": "this is another test",
	})
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	ar, err := kar.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ar.Close()

	out := filepath.Join(dir, "out")
	if err := ar.Extract(out); err != nil {
		t.Fatal(err)
	}

	for name, expected := range map[string]string{
		"test/test1.txt": "this is a test",
		"test/test2.txt": "this is another test",
	} {
		got, err := ioutil.ReadFile(filepath.Join(out, filepath.FromSlash(name)))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != expected {
			t.Errorf("%s: expected %q, got %q", name, expected, got)
		}
	}
}
