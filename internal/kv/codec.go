package kv

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack/v5"
)

// codec.go - сериализация значений KV
//
// Человекочитаемые структуры (кэш цен, вселенная, сигналы в очереди)
// хранятся в JSON через jsoniter; объемные внутренние ряды (снимки
// отслеживаний, история глубины) - в msgpack.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// encodeJSON сериализует значение в JSON
func encodeJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// decodeJSON десериализует значение из JSON
func decodeJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// encodeMsgpack сериализует значение в msgpack
func encodeMsgpack(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// decodeMsgpack десериализует значение из msgpack
func decodeMsgpack(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
