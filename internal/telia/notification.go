package telia

import (
	"encoding/json"
	"encoding/xml"
	"strings"
)

// DeliveryNotification is the parsed payload of a carrier delivery receipt
// webhook.
type DeliveryNotification struct {
	CallbackData   string
	Address        string
	DeliveryStatus string
}

type xmlDeliveryInfo struct {
	Address        string `xml:"address"`
	DeliveryStatus string `xml:"deliveryStatus"`
}

type xmlDeliveryInfoNotification struct {
	XMLName      xml.Name
	CallbackData string           `xml:"callbackData"`
	DeliveryInfo *xmlDeliveryInfo `xml:"deliveryInfo"`
}

type jsonDeliveryInfo struct {
	Address        string `json:"address"`
	DeliveryStatus string `json:"deliveryStatus"`
}

type jsonDeliveryInfoNotification struct {
	CallbackData string            `json:"callbackData"`
	DeliveryInfo *jsonDeliveryInfo `json:"deliveryInfo"`
}

// ParseDeliveryNotification decodes a receipt body. The carrier documents an
// XML document but has been observed to send JSON as well, so the XML shape
// is attempted first with a JSON fallback. Both failing, or neither carrying
// a deliveryInfo block, yields ok=false — a deliberate "no delivery info"
// result, never an error.
func ParseDeliveryNotification(body []byte) (DeliveryNotification, bool) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return DeliveryNotification{}, false
	}

	var xmlMsg xmlDeliveryInfoNotification
	if err := xml.Unmarshal([]byte(trimmed), &xmlMsg); err == nil && xmlMsg.DeliveryInfo != nil {
		return DeliveryNotification{
			CallbackData:   strings.TrimSpace(xmlMsg.CallbackData),
			Address:        strings.TrimSpace(xmlMsg.DeliveryInfo.Address),
			DeliveryStatus: strings.TrimSpace(xmlMsg.DeliveryInfo.DeliveryStatus),
		}, true
	}

	var jsonMsg jsonDeliveryInfoNotification
	if err := json.Unmarshal([]byte(trimmed), &jsonMsg); err == nil && jsonMsg.DeliveryInfo != nil {
		return DeliveryNotification{
			CallbackData:   strings.TrimSpace(jsonMsg.CallbackData),
			Address:        strings.TrimSpace(jsonMsg.DeliveryInfo.Address),
			DeliveryStatus: strings.TrimSpace(jsonMsg.DeliveryInfo.DeliveryStatus),
		}, true
	}

	return DeliveryNotification{}, false
}
