package gateway

import (
	"strings"

	"rifa-service/internal/util"
)

// Key paths tried in priority order. Top-level first, then the common
// nesting containers, then array-wrapped variants of the same.
var externalIDPaths = [][]string{
	{"external_id"},
	{"externalId"},
	{"id"},
	{"transaction_id"},
	{"data", "external_id"},
	{"data", "id"},
	{"data", "transaction_id"},
	{"transaction", "external_id"},
	{"transaction", "id"},
	{"payment", "external_id"},
	{"payment", "id"},
	{"result", "external_id"},
	{"result", "id"},
}

var pixPayloadPaths = [][]string{
	{"copy_past"},
	{"copy_paste"},
	{"copyPaste"},
	{"pix_copia_e_cola"},
	{"qr_code"},
	{"emv"},
	{"data", "copy_past"},
	{"data", "copy_paste"},
	{"data", "pix_copia_e_cola"},
	{"data", "qr_code"},
	{"transaction", "copy_paste"},
	{"transaction", "qr_code"},
	{"payment", "copy_paste"},
	{"payment", "qr_code"},
	{"result", "copy_paste"},
	{"result", "qr_code"},
}

var qrImagePaths = [][]string{
	{"qr_code_base64"},
	{"qrCodeBase64"},
	{"qr_code_image"},
	{"data", "qr_code_base64"},
	{"data", "qr_code_image"},
	{"transaction", "qr_code_base64"},
	{"payment", "qr_code_base64"},
}

var statusPaths = [][]string{
	{"status"},
	{"data", "status"},
	{"transaction", "status"},
	{"payment", "status"},
	{"result", "status"},
}

// ExtractExternalID locates the provider's transaction id in a response
// of unknown shape, or returns "".
func ExtractExternalID(payload map[string]interface{}) string {
	return util.CoerceString(firstMatch(payload, externalIDPaths))
}

// ExtractPixPayload locates the PIX copy-paste code, or returns "". A
// value is only accepted when it looks like an EMV payload rather than a
// bare id.
func ExtractPixPayload(payload map[string]interface{}) string {
	v := util.CoerceString(firstMatch(payload, pixPayloadPaths))
	if v == "" {
		return ""
	}
	// EMV payloads start with the "000201" format indicator; ids and
	// URLs that ended up under a pix-ish key are rejected.
	if !strings.HasPrefix(v, "000201") && len(v) < 30 {
		return ""
	}
	return v
}

// ExtractStatus locates the provider's status string, or returns "".
func ExtractStatus(payload map[string]interface{}) string {
	return strings.ToLower(strings.TrimSpace(util.CoerceString(firstMatch(payload, statusPaths))))
}

// MapProviderStatus folds the provider's status vocabulary into the
// three internal order statuses. Unknown values map to "" so the caller
// keeps the current status instead of guessing.
func MapProviderStatus(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "paid", "pago", "approved", "completed", "confirmed", "success":
		return "paid"
	case "failed", "error", "refused", "canceled", "cancelled", "expired", "refunded", "chargeback":
		return "failed"
	case "pending", "waiting", "waiting_payment", "processing", "created":
		return "pending"
	default:
		return ""
	}
}

func firstMatch(payload map[string]interface{}, paths [][]string) interface{} {
	if payload == nil {
		return nil
	}
	for _, path := range paths {
		if v := lookupPath(payload, path); v != nil {
			if s := util.CoerceString(v); s != "" {
				return v
			}
		}
	}
	return nil
}

func lookup(payload map[string]interface{}, key string) interface{} {
	if payload == nil {
		return nil
	}
	return payload[key]
}

// lookupPath walks a key path, unwrapping single-element arrays along
// the way (some provider endpoints wrap objects in arrays).
func lookupPath(node interface{}, path []string) interface{} {
	for _, key := range path {
		if arr, ok := node.([]interface{}); ok {
			if len(arr) == 0 {
				return nil
			}
			node = arr[0]
		}
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node = m[key]
		if node == nil {
			return nil
		}
	}
	if arr, ok := node.([]interface{}); ok {
		if len(arr) == 0 {
			return nil
		}
		node = arr[0]
	}
	return node
}
