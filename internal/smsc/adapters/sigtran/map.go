package sigtran

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
)

// IMSIResolver maps an MSISDN to the subscriber IMSI used for MAP
// addressing. Real deployments back this with an HLR query.
type IMSIResolver interface {
	ResolveIMSI(ctx context.Context, msisdn string) (string, error)
}

// StaticIMSIResolver returns a fixed IMSI for every subscriber; the default
// stand-in while HLR integration is out of scope.
type StaticIMSIResolver struct {
	IMSI string
}

func (r StaticIMSIResolver) ResolveIMSI(ctx context.Context, msisdn string) (string, error) {
	return r.IMSI, nil
}

// NewStaticIMSIResolver builds the default resolver.
func NewStaticIMSIResolver() StaticIMSIResolver {
	return StaticIMSIResolver{IMSI: "123456789012345"}
}

// smsSubmit is the SMS-SUBMIT TPDU carried inside the MAP operation.
type smsSubmit struct {
	MessageType        byte   `json:"tp_message_type"`
	MessageReference   byte   `json:"tp_message_reference"`
	DestinationAddress string `json:"tp_destination_address"`
	ProtocolIdentifier byte   `json:"tp_protocol_identifier"`
	DataCodingScheme   byte   `json:"tp_data_coding_scheme"`
	ValidityPeriod     byte   `json:"tp_validity_period"`
	UserDataLength     int    `json:"tp_user_data_length"`
	UserData           string `json:"tp_user_data"`
}

// mapOperation is an MO_FORWARD_SM request.
type mapOperation struct {
	Operation   string `json:"operation"`
	Destination struct {
		IMSI string `json:"imsi"`
	} `json:"sm_rp_da"`
	Originating struct {
		MSISDN string `json:"msisdn"`
	} `json:"sm_rp_oa"`
	UserInfo smsSubmit `json:"sm_rp_ui"`
}

const (
	tpMessageTypeSubmit = 0x01
	tpPIDDefault        = 0x00
	tpDCSGSM7Bit        = 0x00
	tpVP24Hours         = 0x47
)

// encodeUserData renders the message content for the TPDU. Full GSM 7-bit
// alphabet handling is a pluggable concern; the default codec carries the
// content base64-encoded.
func encodeUserData(content string) string {
	return base64.StdEncoding.EncodeToString([]byte(content))
}

// newMessageReference draws the pseudo-random 0..255 reference correlating
// the submit with its acknowledgment.
func newMessageReference() byte {
	return byte(rand.Intn(256))
}

// buildSubmit assembles the MAP operation for one message and returns it
// with the reference assigned to it.
func buildSubmit(imsi, sender, recipient, content string, ref byte) mapOperation {
	encoded := encodeUserData(content)
	op := mapOperation{Operation: "MO_FORWARD_SM"}
	op.Destination.IMSI = imsi
	op.Originating.MSISDN = sender
	op.UserInfo = smsSubmit{
		MessageType:        tpMessageTypeSubmit,
		MessageReference:   ref,
		DestinationAddress: recipient,
		ProtocolIdentifier: tpPIDDefault,
		DataCodingScheme:   tpDCSGSM7Bit,
		ValidityPeriod:     tpVP24Hours,
		UserDataLength:     len(encoded),
		UserData:           encoded,
	}
	return op
}

func encodeSubmit(op mapOperation) ([]byte, error) {
	payload, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MAP operation: %w", err)
	}
	return payload, nil
}
