package gtfs

import (
	"sort"
	"strings"
	"time"

	"github.com/jamespfennell/gtfsgo/csv"
)

// Service corresponds to a service_id in calendar.txt and/or calendar_dates.txt.
//
// A service that only appears in calendar_dates.txt has no weekly pattern and a date range
// spanning its exception dates.
type Service struct {
	Id           string
	Monday       bool
	Tuesday      bool
	Wednesday    bool
	Thursday     bool
	Friday       bool
	Saturday     bool
	Sunday       bool
	StartDate    time.Time
	EndDate      time.Time
	AddedDates   []time.Time
	RemovedDates []time.Time
}

// RunsOnWeekday reports whether the weekly pattern of the service includes the weekday.
func (s *Service) RunsOnWeekday(d time.Weekday) bool {
	switch d {
	case time.Monday:
		return s.Monday
	case time.Tuesday:
		return s.Tuesday
	case time.Wednesday:
		return s.Wednesday
	case time.Thursday:
		return s.Thursday
	case time.Friday:
		return s.Friday
	case time.Saturday:
		return s.Saturday
	case time.Sunday:
		return s.Sunday
	}
	return false
}

// RunsOn reports whether the service operates on the date.
//
// Removed dates take precedence over the weekly pattern, and added dates take precedence over both.
func (s *Service) RunsOn(date time.Time) bool {
	for _, added := range s.AddedDates {
		if added.Equal(date) {
			return true
		}
	}
	for _, removed := range s.RemovedDates {
		if removed.Equal(date) {
			return false
		}
	}
	if date.Before(s.StartDate) || date.After(s.EndDate) {
		return false
	}
	return s.RunsOnWeekday(date.Weekday())
}

// ParseDate parses a GTFS date of the form YYYYMMDD.
func ParseDate(yyyymmdd string) (time.Time, error) {
	if len(yyyymmdd) != 8 {
		return time.Time{}, InvalidDateError{Value: yyyymmdd, Reason: "expected 8 digits YYYYMMDD"}
	}
	for _, c := range yyyymmdd {
		if c < '0' || c > '9' {
			return time.Time{}, InvalidDateError{Value: yyyymmdd, Reason: "expected 8 digits YYYYMMDD"}
		}
	}
	t, err := time.Parse("20060102", yyyymmdd)
	if err != nil {
		return time.Time{}, InvalidDateError{Value: yyyymmdd, Reason: "not a calendar date"}
	}
	return t, nil
}

// ServicesOnDate returns the IDs of the services operating on the date.
func (s *Static) ServicesOnDate(date time.Time) map[string]bool {
	serviceIDs := map[string]bool{}
	for i := range s.Services {
		if s.Services[i].RunsOn(date) {
			serviceIDs[s.Services[i].Id] = true
		}
	}
	return serviceIDs
}

// TripsOnDate returns the IDs of the trips operating on the YYYYMMDD date.
func (s *Static) TripsOnDate(yyyymmdd string) (map[string]bool, error) {
	date, err := ParseDate(yyyymmdd)
	if err != nil {
		return nil, err
	}
	serviceIDs := s.ServicesOnDate(date)
	tripIDs := map[string]bool{}
	for _, trip := range s.Trips {
		if serviceIDs[trip.ServiceID] {
			tripIDs[trip.ID] = true
		}
	}
	return tripIDs, nil
}

type serviceBuilder struct {
	services   map[string]*Service
	inCalendar map[string]bool
}

func newServiceBuilder() *serviceBuilder {
	return &serviceBuilder{
		services:   map[string]*Service{},
		inCalendar: map[string]bool{},
	}
}

func (b *serviceBuilder) get(serviceID string) *Service {
	service, ok := b.services[serviceID]
	if !ok {
		service = &Service{Id: serviceID}
		b.services[serviceID] = service
	}
	return service
}

func (b *serviceBuilder) build() []Service {
	var services []Service
	for _, service := range b.services {
		if !b.inCalendar[service.Id] {
			var dates []time.Time
			dates = append(dates, service.AddedDates...)
			dates = append(dates, service.RemovedDates...)
			for i, date := range dates {
				if i == 0 || date.Before(service.StartDate) {
					service.StartDate = date
				}
				if i == 0 || date.After(service.EndDate) {
					service.EndDate = date
				}
			}
		}
		services = append(services, *service)
	}
	sort.Slice(services, func(i, j int) bool {
		return services[i].Id < services[j].Id
	})
	return services
}

func (p *parser) parseCalendar(file *csv.File) error {
	serviceIDColumn := file.RequiredColumn("service_id")
	weekdayColumns := []csv.RequiredColumn{
		file.RequiredColumn("monday"),
		file.RequiredColumn("tuesday"),
		file.RequiredColumn("wednesday"),
		file.RequiredColumn("thursday"),
		file.RequiredColumn("friday"),
		file.RequiredColumn("saturday"),
		file.RequiredColumn("sunday"),
	}
	startDateColumn := file.RequiredColumn("start_date")
	endDateColumn := file.RequiredColumn("end_date")
	if err := checkColumns(file); err != nil {
		return err
	}
	for file.NextRow() {
		serviceID := serviceIDColumn.Read()
		var flags [7]bool
		for i, column := range weekdayColumns {
			flags[i] = column.Read() == "1"
		}
		startDate, err := readDate(file, startDateColumn)
		if err != nil {
			return err
		}
		endDate, err := readDate(file, endDateColumn)
		if err != nil {
			return err
		}
		if p.skipRow(file) {
			continue
		}
		service := p.services.get(serviceID)
		service.Monday = flags[0]
		service.Tuesday = flags[1]
		service.Wednesday = flags[2]
		service.Thursday = flags[3]
		service.Friday = flags[4]
		service.Saturday = flags[5]
		service.Sunday = flags[6]
		service.StartDate = startDate
		service.EndDate = endDate
		p.services.inCalendar[serviceID] = true
	}
	return nil
}

func (p *parser) parseCalendarDates(file *csv.File) error {
	serviceIDColumn := file.RequiredColumn("service_id")
	dateColumn := file.RequiredColumn("date")
	exceptionTypeColumn := file.RequiredColumn("exception_type")
	if err := checkColumns(file); err != nil {
		return err
	}
	for file.NextRow() {
		serviceID := serviceIDColumn.Read()
		date, err := readDate(file, dateColumn)
		if err != nil {
			return err
		}
		rawExceptionType := strings.TrimSpace(exceptionTypeColumn.Read())
		if p.skipRow(file) {
			continue
		}
		exceptionType, ok := parseExceptionType(rawExceptionType)
		if !ok {
			return malformed(file, exceptionTypeColumn.Name(), rawExceptionType)
		}
		service := p.services.get(serviceID)
		switch exceptionType {
		case ExceptionType_Added:
			service.AddedDates = append(service.AddedDates, date)
		case ExceptionType_Removed:
			service.RemovedDates = append(service.RemovedDates, date)
		}
	}
	return nil
}
