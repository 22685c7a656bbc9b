package normalizer

import (
	"sort"
	"strconv"
	"strings"

	"sms-activation-tracker/internal/model"
)

// Services normalizes the service catalogue.
func Services(raw string) ([]model.Service, error) {
	env, empty, err := prepare(OpServices, raw)
	if err != nil {
		return nil, err
	}
	if empty {
		return []model.Service{}, nil
	}

	switch env.Shape {
	case ShapeArray, ShapeIndexedObject:
		return servicesFromItems(env, env.Items)
	case ShapeObject:
		inner, ok := unwrapResource(env.Object, "services", "data")
		if !ok {
			return servicesFromMap(env, env.Object)
		}
		if items, ok := listItems(inner); ok {
			return servicesFromItems(env, items)
		}
		if obj, ok := inner.(map[string]any); ok {
			return servicesFromMap(env, obj)
		}
	}
	return nil, malformed(OpServices, env)
}

func servicesFromItems(env Envelope, items []any) ([]model.Service, error) {
	services := make([]model.Service, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, malformed(OpServices, env)
		}
		code := pickString(obj, "code", "service", "id")
		if code == "" {
			return nil, malformed(OpServices, env)
		}
		services = append(services, model.Service{
			Code: code,
			Name: firstNonEmpty(pickString(obj, "name", "title", "eng"), code),
		})
	}
	return services, nil
}

// servicesFromMap reads {code: name} or {code: {name: ...}}, sorted by code.
func servicesFromMap(env Envelope, obj map[string]any) ([]model.Service, error) {
	codes := make([]string, 0, len(obj))
	for code := range obj {
		if code == "status" {
			continue
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)

	services := make([]model.Service, 0, len(codes))
	for _, code := range codes {
		var name string
		switch v := obj[code].(type) {
		case string:
			name = strings.TrimSpace(v)
		case map[string]any:
			name = pickString(v, "name", "title", "eng")
		default:
			return nil, malformed(OpServices, env)
		}
		services = append(services, model.Service{Code: code, Name: firstNonEmpty(name, code)})
	}
	return services, nil
}

// Countries normalizes the country list.
func Countries(raw string) ([]model.Country, error) {
	env, empty, err := prepare(OpCountries, raw)
	if err != nil {
		return nil, err
	}
	if empty {
		return []model.Country{}, nil
	}

	var items []any
	keys := []string{}
	switch env.Shape {
	case ShapeArray, ShapeIndexedObject:
		items = env.Items
		if env.Shape == ShapeIndexedObject {
			keys = sortedNumericKeys(env.Object)
		}
	case ShapeObject:
		inner, ok := unwrapResource(env.Object, "countries", "data")
		if !ok {
			return nil, malformed(OpCountries, env)
		}
		list, ok := listItems(inner)
		if !ok {
			return nil, malformed(OpCountries, env)
		}
		items = list
		if obj, isMap := inner.(map[string]any); isMap && isIndexed(obj) {
			keys = sortedNumericKeys(obj)
		}
	default:
		return nil, malformed(OpCountries, env)
	}

	countries := make([]model.Country, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, malformed(OpCountries, env)
		}
		id := pickString(obj, "id", "country", "code")
		if id == "" && i < len(keys) {
			id = keys[i]
		}
		if id == "" {
			return nil, malformed(OpCountries, env)
		}
		visible := true
		if value, ok := pick(obj, "visible", "is_visible"); ok {
			visible = toBool(value)
		}
		countries = append(countries, model.Country{
			ID:      id,
			Name:    firstNonEmpty(pickString(obj, "eng", "name", "title", "rus"), id),
			Visible: visible,
		})
	}
	return countries, nil
}

// Prices normalizes the price table. Both the nested object and the
// array-of-single-key-objects forms resolve to country -> service -> offer.
func Prices(raw string) (model.NormalizedPrice, error) {
	env, empty, err := prepare(OpPrices, raw)
	if err != nil {
		return nil, err
	}
	if empty {
		return model.NormalizedPrice{}, nil
	}

	var table map[string]any
	switch env.Shape {
	case ShapeObject, ShapeIndexedObject:
		table = env.Object
		if inner, ok := unwrapResource(env.Object, "prices", "data"); ok {
			switch v := inner.(type) {
			case map[string]any:
				table = v
			case []any:
				merged, ok := mergeSingleKeyObjects(v)
				if !ok {
					return nil, malformed(OpPrices, env)
				}
				table = merged
			default:
				return nil, malformed(OpPrices, env)
			}
		} else if isSuccessEnvelope(env.Object) {
			return model.NormalizedPrice{}, nil
		}
	case ShapeArray:
		merged, ok := mergeSingleKeyObjects(env.Items)
		if !ok {
			return nil, malformed(OpPrices, env)
		}
		table = merged
	default:
		return nil, malformed(OpPrices, env)
	}

	prices := make(model.NormalizedPrice, len(table))
	for country, block := range table {
		services, ok := block.(map[string]any)
		if !ok {
			return nil, malformed(OpPrices, env)
		}
		offers := make(map[string]model.PriceEntry, len(services))
		for service, value := range services {
			offer, ok := value.(map[string]any)
			if !ok {
				return nil, malformed(OpPrices, env)
			}
			offers[service] = priceEntry(offer)
		}
		prices[country] = offers
	}
	return prices, nil
}

func priceEntry(offer map[string]any) model.PriceEntry {
	var entry model.PriceEntry
	if value, ok := pick(offer, "cost", "price"); ok {
		entry.Cost, _ = toFloat(value)
	}
	if value, ok := pick(offer, "count", "quantity"); ok {
		entry.Count, _ = toInt(value)
	}
	if value, ok := pick(offer, "physicalCount", "physical_count"); ok {
		entry.PhysicalCount, _ = toInt(value)
	}
	return entry
}

// CreatedActivation normalizes a purchase result, JSON or legacy
// ACCESS_NUMBER:<id>:<phone>.
func CreatedActivation(raw string) (model.CreatedActivation, error) {
	env, _, err := prepare(OpCreateActivation, raw)
	if err != nil {
		return model.CreatedActivation{}, err
	}

	switch env.Shape {
	case ShapeText, ShapeScalar:
		return parseAccessNumber(env)
	case ShapeObject:
		obj := env.Object
		if inner, ok := unwrapResource(obj, "activation", "data"); ok {
			if nested, ok := inner.(map[string]any); ok {
				obj = nested
			}
		}
		created := model.CreatedActivation{
			ActivationID: pickString(obj, "activationId", "id", "activation_id"),
			PhoneNumber:  pickString(obj, "phoneNumber", "phone", "number"),
			Currency:     firstNonEmpty(pickString(obj, "currency", "currencyCode"), model.DefaultCurrency),
			CountryCode:  pickString(obj, "countryCode", "country"),
		}
		if value, ok := pick(obj, "activationCost", "cost", "price", "sum"); ok {
			created.Cost, _ = toFloat(value)
		}
		if value, ok := pick(obj, "activationTime", "createDate", "created_at"); ok {
			created.ActivationTime = timestampText(value)
		}
		if value, ok := pick(obj, "canGetAnotherSms", "can_get_another_sms"); ok {
			created.CanGetAnotherSMS = toBool(value)
		}
		if created.ActivationID == "" || created.PhoneNumber == "" {
			return model.CreatedActivation{}, malformed(OpCreateActivation, env)
		}
		return created, nil
	}
	return model.CreatedActivation{}, malformed(OpCreateActivation, env)
}

func parseAccessNumber(env Envelope) (model.CreatedActivation, error) {
	parts := strings.Split(env.Text, ":")
	if len(parts) < 3 || parts[0] != "ACCESS_NUMBER" {
		return model.CreatedActivation{}, malformed(OpCreateActivation, env)
	}
	id := strings.TrimSpace(parts[1])
	phone := strings.TrimSpace(parts[2])
	if id == "" || phone == "" {
		return model.CreatedActivation{}, malformed(OpCreateActivation, env)
	}
	// The legacy format carries no price information.
	return model.CreatedActivation{
		ActivationID: id,
		PhoneNumber:  phone,
		Cost:         0,
		Currency:     model.DefaultCurrency,
	}, nil
}

// ActiveActivations normalizes the list of activations the provider still
// considers active. "No activations" in any form is an empty list.
func ActiveActivations(raw string) ([]model.ActivationRecord, error) {
	env, empty, err := prepare(OpActiveActivations, raw)
	if err != nil {
		return nil, err
	}
	if empty {
		return []model.ActivationRecord{}, nil
	}

	var items []any
	switch env.Shape {
	case ShapeArray, ShapeIndexedObject:
		items = env.Items
	case ShapeObject:
		inner, ok := unwrapResource(env.Object, "activeActivations", "activations", "data")
		if !ok {
			if isSuccessEnvelope(env.Object) {
				return []model.ActivationRecord{}, nil
			}
			return nil, malformed(OpActiveActivations, env)
		}
		list, ok := listItems(inner)
		if !ok {
			return nil, malformed(OpActiveActivations, env)
		}
		items = list
	default:
		return nil, malformed(OpActiveActivations, env)
	}

	records := make([]model.ActivationRecord, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, malformed(OpActiveActivations, env)
		}
		record, ok := canonicalRow(row)
		if !ok {
			return nil, malformed(OpActiveActivations, env)
		}
		records = append(records, record)
	}
	return records, nil
}

// canonicalRow maps the varying row field names onto one record, coercing
// numeric fields and defaulting missing ones.
func canonicalRow(row map[string]any) (model.ActivationRecord, bool) {
	record := model.ActivationRecord{
		ActivationID: pickString(row, "activationId", "id", "activation_id"),
		ServiceCode:  pickString(row, "serviceCode", "service", "service_code"),
		CountryCode:  pickString(row, "countryCode", "country", "country_code"),
		PhoneNumber:  pickString(row, "phoneNumber", "phone", "number"),
		Currency:     firstNonEmpty(pickString(row, "currency", "currencyCode"), model.DefaultCurrency),
		SMSCode:      optionalText(row, "smsCode", "code", "sms_code"),
		SMSText:      optionalText(row, "smsText", "text", "sms_text"),
	}
	if record.ActivationID == "" {
		return model.ActivationRecord{}, false
	}

	if value, ok := pick(row, "activationCost", "cost", "sum", "price"); ok {
		record.Cost, _ = toFloat(value)
	}
	discount, hasDiscount := pick(row, "discount")
	record.Discount = firstNonEmpty(discountText(discount, hasDiscount), model.DefaultDiscount)
	if value, ok := pick(row, "activationStatus", "status"); ok {
		record.RawStatus, _ = toInt(value)
	}
	if value, ok := pick(row, "activationTime", "createDate", "created_at", "date"); ok {
		record.ServerCreatedAt = timestampText(value)
	}
	if value, ok := pick(row, "canGetAnotherSms", "can_get_another_sms"); ok {
		record.CanGetAnotherSMS = toBool(value)
	}
	return record, true
}

var statusTexts = map[string]int{
	"STATUS_WAIT_CODE":   model.StatusWaitingForSMS,
	"STATUS_WAIT_RETRY":  model.StatusRetrying,
	"STATUS_WAIT_RESEND": model.StatusRetrying,
	"STATUS_OK":          model.StatusCodeReceived,
	"STATUS_COMPLETE":    model.StatusCompleted,
	"STATUS_CANCEL":      model.StatusCanceled,
	"ACCESS_ACTIVATION":  model.StatusCompleted,
}

// Status normalizes a status query: STATUS_*[:code] text or a JSON object.
func Status(raw string) (model.ActivationStatus, error) {
	env, _, err := prepare(OpStatus, raw)
	if err != nil {
		return model.ActivationStatus{}, err
	}

	switch env.Shape {
	case ShapeText, ShapeScalar:
		if env.Scalar != nil {
			if n, ok := toInt(env.Scalar); ok {
				return model.ActivationStatus{Raw: env.Text, RawStatus: n}, nil
			}
		}
		name, code, _ := strings.Cut(env.Text, ":")
		rawStatus, ok := statusTexts[strings.ToUpper(strings.TrimSpace(name))]
		if !ok {
			return model.ActivationStatus{}, malformed(OpStatus, env)
		}
		return model.ActivationStatus{Raw: env.Text, RawStatus: rawStatus, Code: strings.TrimSpace(code)}, nil
	case ShapeObject:
		return statusFromObject(env)
	}
	return model.ActivationStatus{}, malformed(OpStatus, env)
}

func statusFromObject(env Envelope) (model.ActivationStatus, error) {
	obj := env.Object
	status := model.ActivationStatus{Raw: env.Text}

	if code := optionalText(obj, "sms", "smsCode", "code"); code != nil {
		status.Code = *code
	}

	if value, ok := pick(obj, "activationStatus", "status"); ok {
		if n, isNumber := toInt(value); isNumber {
			status.RawStatus = n
			return status, nil
		}
		if mapped, known := statusTexts[strings.ToUpper(toString(value))]; known {
			status.RawStatus = mapped
			return status, nil
		}
	}

	_, hasSMS := obj["sms"]
	_, hasVerification := obj["verificationType"]
	switch {
	case status.Code != "":
		status.RawStatus = model.StatusCodeReceived
	case hasSMS || hasVerification:
		status.RawStatus = model.StatusWaitingForSMS
	default:
		return model.ActivationStatus{}, malformed(OpStatus, env)
	}
	return status, nil
}

// SetStatus normalizes the acknowledgement of a status change.
func SetStatus(raw string) (string, error) {
	env, _, err := prepare(OpSetStatus, raw)
	if err != nil {
		return "", err
	}

	switch env.Shape {
	case ShapeText, ShapeScalar:
		if strings.HasPrefix(env.Text, "ACCESS_") {
			return env.Text, nil
		}
	case ShapeObject:
		if isSuccessEnvelope(env.Object) {
			return "success", nil
		}
	}
	return "", malformed(OpSetStatus, env)
}

// Balance normalizes ACCESS_BALANCE:<amount>, a bare number or {balance: n}.
func Balance(raw string) (model.Balance, error) {
	env, _, err := prepare(OpBalance, raw)
	if err != nil {
		return model.Balance{}, err
	}

	switch env.Shape {
	case ShapeText, ShapeScalar:
		text := env.Text
		if prefix, amount, found := strings.Cut(text, ":"); found {
			if prefix != "ACCESS_BALANCE" {
				return model.Balance{}, malformed(OpBalance, env)
			}
			text = amount
		}
		if env.Scalar != nil {
			if value, ok := toFloat(env.Scalar); ok {
				return model.Balance{Amount: value}, nil
			}
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return model.Balance{}, malformed(OpBalance, env)
		}
		return model.Balance{Amount: amount}, nil
	case ShapeObject:
		if value, ok := pick(env.Object, "balance", "amount"); ok {
			if amount, ok := toFloat(value); ok {
				return model.Balance{Amount: amount}, nil
			}
		}
	}
	return model.Balance{}, malformed(OpBalance, env)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

