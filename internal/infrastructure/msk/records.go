// Package msk decodes Kafka batches delivered to a Lambda function by an MSK
// event source mapping.
package msk

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/aws/aws-lambda-go/events"
)

// Message is one decoded Kafka record.
type Message struct {
	Topic     string
	Partition int64
	Offset    int64
	Key       []byte
	Value     []byte
}

// ID identifies the record for logging.
func (m Message) ID() string {
	return fmt.Sprintf("%s-%d@%d", m.Topic, m.Partition, m.Offset)
}

// DecodeRecord base64-decodes the key and value of a single record.
// Records without a value are rejected.
func DecodeRecord(r events.KafkaRecord) (Message, error) {
	msg := Message{Topic: r.Topic, Partition: r.Partition, Offset: r.Offset}
	if r.Value == "" {
		return msg, fmt.Errorf("record %s has no value", msg.ID())
	}

	value, err := base64.StdEncoding.DecodeString(r.Value)
	if err != nil {
		return msg, fmt.Errorf("decode value of %s: %w", msg.ID(), err)
	}
	msg.Value = value

	if r.Key != "" {
		key, err := base64.StdEncoding.DecodeString(r.Key)
		if err != nil {
			return msg, fmt.Errorf("decode key of %s: %w", msg.ID(), err)
		}
		msg.Key = key
	}
	return msg, nil
}

// DecodeEvent decodes every record in the batch, ordered by partition then offset.
// Returns the decoded messages and one error per record that failed.
func DecodeEvent(ev events.KafkaEvent) ([]Message, []error) {
	partitions := make([]string, 0, len(ev.Records))
	for p := range ev.Records {
		partitions = append(partitions, p)
	}
	sort.Strings(partitions)

	var msgs []Message
	var errs []error
	for _, p := range partitions {
		for _, r := range ev.Records[p] {
			msg, err := DecodeRecord(r)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs, errs
}
