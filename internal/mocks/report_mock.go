package mocks

import (
	"net/http"
	"time"

	"github.com/benmeehan/geo-reporter/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockTransport is a mock implementation of reporter.Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Do(req *http.Request) ([]byte, error) {
	args := m.Called(req)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

// MockReportDelegate is a mock implementation of services.ReportDelegate
type MockReportDelegate struct {
	mock.Mock
}

func (m *MockReportDelegate) DidReport(lat, lon float64, body []byte) {
	m.Called(lat, lon, body)
}

func (m *MockReportDelegate) DidFailToReport(lat, lon float64, err error) {
	m.Called(lat, lon, err)
}

// MockReportController is a mock implementation of api.ReportController
type MockReportController struct {
	mock.Mock
}

func (m *MockReportController) ReportOnce() {
	m.Called()
}

func (m *MockReportController) ReportLocation(coord location.Coordinate) {
	m.Called(coord)
}

func (m *MockReportController) Configure(endpoint, ext string) {
	m.Called(endpoint, ext)
}

func (m *MockReportController) Endpoint() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockReportController) Ext() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockReportController) StartUpdatingLocation(interval time.Duration) error {
	args := m.Called(interval)
	return args.Error(0)
}

func (m *MockReportController) StopUpdatingLocation() {
	m.Called()
}

func (m *MockReportController) IsScheduled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockReportController) Interval() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockReportController) LocationAvailable() bool {
	args := m.Called()
	return args.Bool(0)
}
