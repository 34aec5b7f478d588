package archive

import "encoding/json"

// EncodeParams serializes a parameter vector for blob storage.
func EncodeParams(params []float64) ([]byte, error) {
	return json.Marshal(params)
}

// DecodeParams deserializes a parameter vector from blob storage.
func DecodeParams(data []byte) ([]float64, error) {
	var params []float64
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	return params, nil
}
