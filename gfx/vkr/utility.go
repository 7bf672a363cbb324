// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/devblok/vkframe/gfx"
)

var errUnknownHandle = errors.New("unknown handle")

// fail wraps the error of a Vulkan call, named as in "vk.CreateBuffer()".
func fail(call string, err error) error {
	return &gfx.DeviceError{Op: call, Err: err}
}

func unknown(kind string, handle uint64) error {
	return &gfx.DeviceError{Op: fmt.Sprintf("%s %d", kind, handle), Err: errUnknownHandle}
}

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

// SliceUint32 reslices bytes into uint32 words, as Vulkan takes SPIR-V code.
// Trailing bytes that do not fill a word are dropped.
func SliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer((*sliceHeader)(unsafe.Pointer(&data)).Data))[:len(data)/4]
}

// mappedBytes views size bytes of mapped device memory as a slice.
func mappedBytes(ptr unsafe.Pointer, size int) []byte {
	return *(*[]byte)(unsafe.Pointer(&sliceHeader{
		Data: uintptr(ptr),
		Len:  size,
		Cap:  size,
	}))
}

func safeString(s string) string {
	return fmt.Sprintf("%s\x00", s)
}

func safeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
