package grpcapi_test

import (
	"os"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bookstore/internal/transport/grpcapi"
)

const contractPath = "../../../proto/bookstore/v1/order_service.proto"

var (
	rpcLine     = regexp.MustCompile(`rpc\s+(\w+)\((\w+)\)\s+returns\s+\((\w+)\)`)
	messageDecl = regexp.MustCompile(`(?s)message\s+(\w+)\s*\{(.*?)\}`)
	fieldLine   = regexp.MustCompile(`^\s*(?:repeated\s+)?[\w.]+\s+(\w+)\s*=\s*\d+;`)
)

func readContract(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile(contractPath)
	require.NoError(t, err)
	return string(raw)
}

func TestContract_ServiceDescMatchesProto(t *testing.T) {
	contract := readContract(t)

	require.Contains(t, contract, "package bookstore.v1;")
	require.Equal(t, "bookstore.v1.OrderService", grpcapi.ServiceName)
	require.True(t, strings.HasSuffix(contractPath, grpcapi.OrderServiceDesc.Metadata.(string)))

	var fromProto []string
	for _, m := range rpcLine.FindAllStringSubmatch(contract, -1) {
		fromProto = append(fromProto, m[1])
	}
	var fromDesc []string
	for _, m := range grpcapi.OrderServiceDesc.Methods {
		fromDesc = append(fromDesc, m.MethodName)
	}
	sort.Strings(fromProto)
	sort.Strings(fromDesc)
	require.Equal(t, fromProto, fromDesc)
}

// Тело JSON-кодека должно совпадать с protojson: имена полей в lowerCamel.
func TestContract_MessageFieldsMatchProto(t *testing.T) {
	goTypes := map[string]any{
		"CartItem":             grpcapi.CartItem{},
		"CreateOrderRequest":   grpcapi.CreateOrderRequest{},
		"CreateOrderResponse":  grpcapi.CreateOrderResponse{},
		"ListMyOrdersRequest":  grpcapi.ListMyOrdersRequest{},
		"ListMyOrdersResponse": grpcapi.ListMyOrdersResponse{},
		"GetOrderRequest":      grpcapi.GetOrderRequest{},
		"GetOrderResponse":     grpcapi.GetOrderResponse{},
		"OrderItem":            grpcapi.OrderItem{},
		"Order":                grpcapi.Order{},
	}

	messages := messageDecl.FindAllStringSubmatch(readContract(t), -1)
	require.Len(t, messages, len(goTypes))

	for _, m := range messages {
		name, body := m[1], m[2]
		goType, ok := goTypes[name]
		require.True(t, ok, "message %s has no Go counterpart", name)

		var protoFields []string
		for _, line := range strings.Split(body, "\n") {
			if f := fieldLine.FindStringSubmatch(line); f != nil {
				protoFields = append(protoFields, lowerCamel(f[1]))
			}
		}
		require.ElementsMatch(t, protoFields, jsonFields(goType), name)
	}
}

func jsonFields(v any) []string {
	typ := reflect.TypeOf(v)
	fields := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		tag, _, _ := strings.Cut(typ.Field(i).Tag.Get("json"), ",")
		fields = append(fields, tag)
	}
	return fields
}

func lowerCamel(snake string) string {
	parts := strings.Split(snake, "_")
	for i := 1; i < len(parts); i++ {
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
