// Package pgmock hand-maintains mocks of this module's four external
// interfaces (pagedir.Dir, fileops.File, framepool.Pool, swap.Device) in
// the shape go.uber.org/mock's mockgen would generate, for tests of spt/
// frame/fault that want strict call expectations instead of the in-memory
// fakes' baked-in behavior.
//
// Not run through mockgen (no retrieved example in this pack drives one);
// written by hand to the same MockX/MockXMockRecorder/EXPECT() shape so it
// drops in wherever a generated mock would.
package pgmock

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"pagevm/fileops"
	"pagevm/framepool"
	"pagevm/swap"
)

// MockDir mocks pagedir.Dir.
type MockDir struct {
	ctrl     *gomock.Controller
	recorder *MockDirMockRecorder
}

type MockDirMockRecorder struct {
	mock *MockDir
}

func NewMockDir(ctrl *gomock.Controller) *MockDir {
	m := &MockDir{ctrl: ctrl}
	m.recorder = &MockDirMockRecorder{m}
	return m
}

func (m *MockDir) EXPECT() *MockDirMockRecorder { return m.recorder }

func (m *MockDir) Install(upage uintptr, kpage []byte, writable bool) bool {
	ret := m.ctrl.Call(m, "Install", upage, kpage, writable)
	ok, _ := ret[0].(bool)
	return ok
}

func (mr *MockDirMockRecorder) Install(upage, kpage, writable interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Install", reflect.TypeOf((*MockDir)(nil).Install), upage, kpage, writable)
}

func (m *MockDir) Clear(upage uintptr) {
	m.ctrl.Call(m, "Clear", upage)
}

func (mr *MockDirMockRecorder) Clear(upage interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Clear", reflect.TypeOf((*MockDir)(nil).Clear), upage)
}

func (m *MockDir) GetPage(upage uintptr) ([]byte, bool) {
	ret := m.ctrl.Call(m, "GetPage", upage)
	kpage, _ := ret[0].([]byte)
	ok, _ := ret[1].(bool)
	return kpage, ok
}

func (mr *MockDirMockRecorder) GetPage(upage interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetPage", reflect.TypeOf((*MockDir)(nil).GetPage), upage)
}

func (m *MockDir) IsDirty(upage uintptr) bool {
	ret := m.ctrl.Call(m, "IsDirty", upage)
	ok, _ := ret[0].(bool)
	return ok
}

func (mr *MockDirMockRecorder) IsDirty(upage interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsDirty", reflect.TypeOf((*MockDir)(nil).IsDirty), upage)
}

func (m *MockDir) IsAccessed(upage uintptr) bool {
	ret := m.ctrl.Call(m, "IsAccessed", upage)
	ok, _ := ret[0].(bool)
	return ok
}

func (mr *MockDirMockRecorder) IsAccessed(upage interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsAccessed", reflect.TypeOf((*MockDir)(nil).IsAccessed), upage)
}

func (m *MockDir) SetDirty(upage uintptr, v bool) {
	m.ctrl.Call(m, "SetDirty", upage, v)
}

func (mr *MockDirMockRecorder) SetDirty(upage, v interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetDirty", reflect.TypeOf((*MockDir)(nil).SetDirty), upage, v)
}

func (m *MockDir) SetAccessed(upage uintptr, v bool) {
	m.ctrl.Call(m, "SetAccessed", upage, v)
}

func (mr *MockDirMockRecorder) SetAccessed(upage, v interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetAccessed", reflect.TypeOf((*MockDir)(nil).SetAccessed), upage, v)
}

// MockFile mocks fileops.File.
type MockFile struct {
	ctrl     *gomock.Controller
	recorder *MockFileMockRecorder
}

type MockFileMockRecorder struct {
	mock *MockFile
}

func NewMockFile(ctrl *gomock.Controller) *MockFile {
	m := &MockFile{ctrl: ctrl}
	m.recorder = &MockFileMockRecorder{m}
	return m
}

func (m *MockFile) EXPECT() *MockFileMockRecorder { return m.recorder }

func (m *MockFile) ReadAt(p []byte, off int64) (int, error) {
	ret := m.ctrl.Call(m, "ReadAt", p, off)
	n, _ := ret[0].(int)
	err, _ := ret[1].(error)
	return n, err
}

func (mr *MockFileMockRecorder) ReadAt(p, off interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReadAt", reflect.TypeOf((*MockFile)(nil).ReadAt), p, off)
}

func (m *MockFile) WriteAt(p []byte, off int64) (int, error) {
	ret := m.ctrl.Call(m, "WriteAt", p, off)
	n, _ := ret[0].(int)
	err, _ := ret[1].(error)
	return n, err
}

func (mr *MockFileMockRecorder) WriteAt(p, off interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "WriteAt", reflect.TypeOf((*MockFile)(nil).WriteAt), p, off)
}

func (m *MockFile) Length() (int64, error) {
	ret := m.ctrl.Call(m, "Length")
	n, _ := ret[0].(int64)
	err, _ := ret[1].(error)
	return n, err
}

func (mr *MockFileMockRecorder) Length() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Length", reflect.TypeOf((*MockFile)(nil).Length))
}

func (m *MockFile) Reopen() (fileops.File, error) {
	ret := m.ctrl.Call(m, "Reopen")
	f, _ := ret[0].(fileops.File)
	err, _ := ret[1].(error)
	return f, err
}

func (mr *MockFileMockRecorder) Reopen() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Reopen", reflect.TypeOf((*MockFile)(nil).Reopen))
}

func (m *MockFile) Close() error {
	ret := m.ctrl.Call(m, "Close")
	err, _ := ret[0].(error)
	return err
}

func (mr *MockFileMockRecorder) Close() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockFile)(nil).Close))
}

// MockPool mocks framepool.Pool.
type MockPool struct {
	ctrl     *gomock.Controller
	recorder *MockPoolMockRecorder
}

type MockPoolMockRecorder struct {
	mock *MockPool
}

func NewMockPool(ctrl *gomock.Controller) *MockPool {
	m := &MockPool{ctrl: ctrl}
	m.recorder = &MockPoolMockRecorder{m}
	return m
}

func (m *MockPool) EXPECT() *MockPoolMockRecorder { return m.recorder }

func (m *MockPool) Alloc(flags framepool.Flags) ([]byte, bool) {
	ret := m.ctrl.Call(m, "Alloc", flags)
	kpage, _ := ret[0].([]byte)
	ok, _ := ret[1].(bool)
	return kpage, ok
}

func (mr *MockPoolMockRecorder) Alloc(flags interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Alloc", reflect.TypeOf((*MockPool)(nil).Alloc), flags)
}

func (m *MockPool) Free(kpage []byte) {
	m.ctrl.Call(m, "Free", kpage)
}

func (mr *MockPoolMockRecorder) Free(kpage interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Free", reflect.TypeOf((*MockPool)(nil).Free), kpage)
}

// MockDevice mocks swap.Device.
type MockDevice struct {
	ctrl     *gomock.Controller
	recorder *MockDeviceMockRecorder
}

type MockDeviceMockRecorder struct {
	mock *MockDevice
}

func NewMockDevice(ctrl *gomock.Controller) *MockDevice {
	m := &MockDevice{ctrl: ctrl}
	m.recorder = &MockDeviceMockRecorder{m}
	return m
}

func (m *MockDevice) EXPECT() *MockDeviceMockRecorder { return m.recorder }

func (m *MockDevice) SwapOut(page []byte) (swap.Slot, error) {
	ret := m.ctrl.Call(m, "SwapOut", page)
	slot, _ := ret[0].(swap.Slot)
	err, _ := ret[1].(error)
	return slot, err
}

func (mr *MockDeviceMockRecorder) SwapOut(page interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SwapOut", reflect.TypeOf((*MockDevice)(nil).SwapOut), page)
}

func (m *MockDevice) SwapIn(slot swap.Slot, dst []byte) error {
	ret := m.ctrl.Call(m, "SwapIn", slot, dst)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockDeviceMockRecorder) SwapIn(slot, dst interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SwapIn", reflect.TypeOf((*MockDevice)(nil).SwapIn), slot, dst)
}

func (m *MockDevice) Free(slot swap.Slot) {
	m.ctrl.Call(m, "Free", slot)
}

func (mr *MockDeviceMockRecorder) Free(slot interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Free", reflect.TypeOf((*MockDevice)(nil).Free), slot)
}
