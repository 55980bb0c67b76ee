// Package mockdb holds a generated test double for database.Database.
//
//go:generate go run ../../../testrunner/mockgen/cmd/gen -interface Database -package mockdb -destination database_mock.go -source ../../database
package mockdb

import "sync"

// DatabaseMock is a concurrency-safe test double for Database.
type DatabaseMock struct {
	mu sync.Mutex

	SaveStub  func(string, []byte) error
	SaveCalls []Database_SaveCall

	DeleteStub  func(string, []byte) error
	DeleteCalls []Database_DeleteCall

	FetchStub  func(string) ([][]byte, error)
	FetchCalls []Database_FetchCall
}

type Database_SaveCall struct {
	Arg0 string
	Arg1 []byte
}

type Database_DeleteCall struct {
	Arg0 string
	Arg1 []byte
}

type Database_FetchCall struct {
	Arg0 string
}

func (m *DatabaseMock) Save(a0 string, a1 []byte) error {
	m.mu.Lock()
	m.SaveCalls = append(m.SaveCalls, Database_SaveCall{Arg0: a0, Arg1: a1})
	stub := m.SaveStub
	m.mu.Unlock()
	if stub != nil {
		return stub(a0, a1)
	}
	return nil
}

func (m *DatabaseMock) Delete(a0 string, a1 []byte) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, Database_DeleteCall{Arg0: a0, Arg1: a1})
	stub := m.DeleteStub
	m.mu.Unlock()
	if stub != nil {
		return stub(a0, a1)
	}
	return nil
}

func (m *DatabaseMock) Fetch(a0 string) ([][]byte, error) {
	m.mu.Lock()
	m.FetchCalls = append(m.FetchCalls, Database_FetchCall{Arg0: a0})
	stub := m.FetchStub
	m.mu.Unlock()
	if stub != nil {
		return stub(a0)
	}
	return nil, nil
}

// Reset clears every stub and recorded call.
func (m *DatabaseMock) Reset() {
	m.mu.Lock()
	m.SaveStub, m.SaveCalls = nil, nil
	m.DeleteStub, m.DeleteCalls = nil, nil
	m.FetchStub, m.FetchCalls = nil, nil
	m.mu.Unlock()
}
