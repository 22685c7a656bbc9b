package normalizer

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"sms-activation-tracker/internal/apierr"
	"sms-activation-tracker/internal/model"
)

func TestClassifyShapes(t *testing.T) {
	tests := []struct {
		raw  string
		want Shape
	}{
		{"BAD_KEY", ShapeSentinel},
		{"NO_NUMBERS", ShapeSentinel},
		{`"NO_ACTIVATIONS"`, ShapeSentinel},
		{"ACCESS_NUMBER:1:7999", ShapeText},
		{"No numbers left", ShapeText},
		{"12.5", ShapeScalar},
		{`{"status":"error","error":"BAD_SERVICE"}`, ShapeErrorObject},
		{`{"0":{"id":1},"1":{"id":2}}`, ShapeIndexedObject},
		{`{"status":"success"}`, ShapeObject},
		{`[1,2]`, ShapeArray},
	}

	for _, tt := range tests {
		if got := Classify(tt.raw).Shape; got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestNoActivationsIsEmptyList(t *testing.T) {
	for _, raw := range []string{
		"NO_ACTIVATIONS",
		`{"status":"error","error":"NO_ACTIVATIONS"}`,
		`{"status":"success"}`,
		`{"status":"success","activeActivations":[]}`,
		"",
	} {
		records, err := ActiveActivations(raw)
		if err != nil {
			t.Fatalf("ActiveActivations(%q) returned error: %v", raw, err)
		}
		if len(records) != 0 {
			t.Fatalf("ActiveActivations(%q) expected empty list, got %d", raw, len(records))
		}
	}
}

func TestSentinelKinds(t *testing.T) {
	tests := []struct {
		raw  string
		want apierr.Kind
	}{
		{"NO_KEY", apierr.KindAuth},
		{"BAD_KEY", apierr.KindAuth},
		{"ERROR_SQL", apierr.KindTransient},
		{"BAD_SERVICE", apierr.KindUpstreamReported},
		{`{"status":"error","error":"BAD_KEY"}`, apierr.KindAuth},
		{`{"status":"error","message":"Service temporarily disabled"}`, apierr.KindUpstreamReported},
	}

	for _, tt := range tests {
		_, err := Services(tt.raw)
		if got := apierr.KindOf(err); got != tt.want {
			t.Errorf("Services(%q) kind = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestUpstreamReportedKeepsLiteralText(t *testing.T) {
	_, err := SetStatus("EARLY_CANCEL_DENIED")
	if !apierr.Is(err, apierr.KindUpstreamReported) {
		t.Fatalf("expected upstream reported error, got %v", err)
	}
	if apierr.UpstreamText(err) != "EARLY_CANCEL_DENIED" {
		t.Fatalf("expected literal text, got %q", apierr.UpstreamText(err))
	}
	if apierr.Message(err) != "can't cancel within first 2 minutes" {
		t.Fatalf("unexpected translated message %q", apierr.Message(err))
	}

	_, err = Status("NO_ACTIVATION")
	if !apierr.Is(err, apierr.KindUpstreamReported) {
		t.Fatalf("expected upstream reported error for status, got %v", err)
	}
}

func TestNoResultsOutsideCollectionsIsReported(t *testing.T) {
	_, err := Status("NO_ACTIVATIONS")
	if !apierr.Is(err, apierr.KindUpstreamReported) {
		t.Fatalf("expected upstream reported error, got %v", err)
	}
}

func TestCollectionsRejectPlainText(t *testing.T) {
	_, err := Services("<html>Bad Gateway</html>")
	if !apierr.Is(err, apierr.KindMalformed) {
		t.Fatalf("expected malformed response, got %v", err)
	}
	_, err = Prices(`"just a string"`)
	if !apierr.Is(err, apierr.KindMalformed) {
		t.Fatalf("expected malformed response for scalar prices, got %v", err)
	}
}

func TestPricesMergesSingleKeyObjects(t *testing.T) {
	prices, err := Prices(`[{"1":{"svcA":{"cost":1}}},{"2":{"svcA":{"cost":2}}}]`)
	if err != nil {
		t.Fatalf("Prices returned error: %v", err)
	}

	want := model.NormalizedPrice{
		"1": {"svcA": {Cost: 1}},
		"2": {"svcA": {Cost: 2}},
	}
	if !reflect.DeepEqual(prices, want) {
		t.Fatalf("expected %+v, got %+v", want, prices)
	}
}

func TestPricesNestedObject(t *testing.T) {
	prices, err := Prices(`{"0":{"tg":{"cost":"10.5","count":3,"physicalCount":1}},"187":{"wa":{"price":7,"count":"12","physical_count":0}}}`)
	if err != nil {
		t.Fatalf("Prices returned error: %v", err)
	}

	if got := prices["0"]["tg"]; got != (model.PriceEntry{Cost: 10.5, Count: 3, PhysicalCount: 1}) {
		t.Fatalf("unexpected tg offer %+v", got)
	}
	if got := prices["187"]["wa"]; got != (model.PriceEntry{Cost: 7, Count: 12}) {
		t.Fatalf("unexpected wa offer %+v", got)
	}
}

func TestActiveActivationsRowsWrapper(t *testing.T) {
	raw := `{"status":"success","activeActivations":{"rows":[{
		"activationId":"101","serviceCode":"tg","countryCode":"0","phoneNumber":"79990001122",
		"activationCost":"12.50","activationStatus":"4","smsCode":["111","222"],
		"smsText":null,"activationTime":"2024-01-01 10:00:00","canGetAnotherSms":"1"}]}}`

	records, err := ActiveActivations(raw)
	if err != nil {
		t.Fatalf("ActiveActivations returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	record := records[0]
	if record.ActivationID != "101" || record.ServiceCode != "tg" || record.PhoneNumber != "79990001122" {
		t.Fatalf("unexpected identity fields %+v", record)
	}
	if record.Cost != 12.5 || record.RawStatus != model.StatusCodeReceived {
		t.Fatalf("expected coerced numbers, got cost=%v status=%d", record.Cost, record.RawStatus)
	}
	if record.Code() != "222" {
		t.Fatalf("expected latest code 222, got %q", record.Code())
	}
	if record.SMSText != nil {
		t.Fatalf("expected nil sms text, got %q", *record.SMSText)
	}
	if record.Currency != model.DefaultCurrency || record.Discount != model.DefaultDiscount {
		t.Fatalf("expected defaults, got currency=%q discount=%q", record.Currency, record.Discount)
	}
	if record.ServerCreatedAt != "2024-01-01 10:00:00" || !record.CanGetAnotherSMS {
		t.Fatalf("unexpected time fields %+v", record)
	}
}

func TestActiveActivationsIndexedKeepsKeyOrder(t *testing.T) {
	raw := `{"10":{"id":"c","status":1},"2":{"id":"b","status":1},"1":{"id":"a","status":1}}`

	first, err := ActiveActivations(raw)
	if err != nil {
		t.Fatalf("ActiveActivations returned error: %v", err)
	}
	var ids []string
	for _, record := range first {
		ids = append(ids, record.ActivationID)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Fatalf("expected numeric key order, got %v", ids)
	}

	second, err := ActiveActivations(raw)
	if err != nil {
		t.Fatalf("second pass returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected normalization to be deterministic")
	}
}

func TestActiveActivationsMissingIDIsMalformed(t *testing.T) {
	_, err := ActiveActivations(`[{"phone":"7999"}]`)
	if !apierr.Is(err, apierr.KindMalformed) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestCreatedActivationLegacyText(t *testing.T) {
	created, err := CreatedActivation("ACCESS_NUMBER:123456:79990001122")
	if err != nil {
		t.Fatalf("CreatedActivation returned error: %v", err)
	}

	want := model.CreatedActivation{
		ActivationID: "123456",
		PhoneNumber:  "79990001122",
		Currency:     model.DefaultCurrency,
	}
	if created != want {
		t.Fatalf("expected %+v, got %+v", want, created)
	}
}

func TestCreatedActivationJSON(t *testing.T) {
	raw := `{"activationId":555,"phoneNumber":"79990001122","activationCost":"1.5","currency":643,
		"countryCode":"0","canGetAnotherSms":true,"activationTime":"2024-01-01 10:00:00"}`

	created, err := CreatedActivation(raw)
	if err != nil {
		t.Fatalf("CreatedActivation returned error: %v", err)
	}
	if created.ActivationID != "555" || created.Cost != 1.5 || created.Currency != "643" {
		t.Fatalf("unexpected result %+v", created)
	}
	if !created.CanGetAnotherSMS || created.ActivationTime != "2024-01-01 10:00:00" {
		t.Fatalf("unexpected optional fields %+v", created)
	}

	_, err = CreatedActivation("NO_NUMBERS")
	if !apierr.Is(err, apierr.KindUpstreamReported) {
		t.Fatalf("expected upstream reported error, got %v", err)
	}
}

func TestStatusForms(t *testing.T) {
	tests := []struct {
		raw        string
		wantStatus int
		wantCode   string
	}{
		{"STATUS_WAIT_CODE", model.StatusWaitingForSMS, ""},
		{"STATUS_WAIT_RESEND", model.StatusRetrying, ""},
		{"STATUS_OK:4821", model.StatusCodeReceived, "4821"},
		{"STATUS_CANCEL", model.StatusCanceled, ""},
		{"STATUS_COMPLETE", model.StatusCompleted, ""},
		{`{"verificationType":0,"sms":{"code":"555","text":"Your code 555"}}`, model.StatusCodeReceived, "555"},
		{`{"verificationType":0}`, model.StatusWaitingForSMS, ""},
	}

	for _, tt := range tests {
		status, err := Status(tt.raw)
		if err != nil {
			t.Fatalf("Status(%q) returned error: %v", tt.raw, err)
		}
		if status.RawStatus != tt.wantStatus || status.Code != tt.wantCode {
			t.Errorf("Status(%q) = %d/%q, want %d/%q", tt.raw, status.RawStatus, status.Code, tt.wantStatus, tt.wantCode)
		}
	}
}

func TestSetStatusAcknowledgements(t *testing.T) {
	for raw, want := range map[string]string{
		"ACCESS_CANCEL":        "ACCESS_CANCEL",
		"ACCESS_READY":         "ACCESS_READY",
		`{"status":"success"}`: "success",
	} {
		got, err := SetStatus(raw)
		if err != nil {
			t.Fatalf("SetStatus(%q) returned error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("SetStatus(%q) = %q, want %q", raw, got, want)
		}
	}

	if _, err := SetStatus("OK"); !apierr.Is(err, apierr.KindMalformed) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestBalanceForms(t *testing.T) {
	for raw, want := range map[string]float64{
		"ACCESS_BALANCE:12.34": 12.34,
		"100":                  100,
		`{"balance":"5.5"}`:    5.5,
		`{"amount":7}`:         7,
	} {
		balance, err := Balance(raw)
		if err != nil {
			t.Fatalf("Balance(%q) returned error: %v", raw, err)
		}
		if balance.Amount != want {
			t.Fatalf("Balance(%q) = %v, want %v", raw, balance.Amount, want)
		}
	}

	if _, err := Balance("ACCESS_READY"); !apierr.Is(err, apierr.KindMalformed) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestServicesAndCountries(t *testing.T) {
	services, err := Services(`{"wa":"WhatsApp","tg":"Telegram"}`)
	if err != nil {
		t.Fatalf("Services returned error: %v", err)
	}
	want := []model.Service{{Code: "tg", Name: "Telegram"}, {Code: "wa", Name: "WhatsApp"}}
	if !reflect.DeepEqual(services, want) {
		t.Fatalf("expected %+v, got %+v", want, services)
	}

	services, err = Services(`{"status":"success","services":[{"code":"ig","name":"Instagram"}]}`)
	if err != nil || len(services) != 1 || services[0].Code != "ig" {
		t.Fatalf("unexpected wrapped services %+v, err=%v", services, err)
	}

	countries, err := Countries(`{"0":{"id":0,"eng":"Russia","visible":1},"1":{"eng":"Ukraine","visible":0}}`)
	if err != nil {
		t.Fatalf("Countries returned error: %v", err)
	}
	if len(countries) != 2 {
		t.Fatalf("expected 2 countries, got %d", len(countries))
	}
	if countries[0] != (model.Country{ID: "0", Name: "Russia", Visible: true}) {
		t.Fatalf("unexpected first country %+v", countries[0])
	}
	if countries[1] != (model.Country{ID: "1", Name: "Ukraine", Visible: false}) {
		t.Fatalf("unexpected second country %+v", countries[1])
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	text := strings.Repeat("a", 255) + "é" + "tail"

	got := truncate(text, 256)
	if got != strings.Repeat("a", 255) {
		t.Fatalf("expected cut before the split rune, got %d bytes", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatal("expected valid UTF-8")
	}
	if truncate("короткий", 256) != "короткий" {
		t.Fatal("expected short text to be returned as is")
	}
}
