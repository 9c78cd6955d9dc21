// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// xmlBuilder assembles a BinXml token stream by hand, computing each
// Name's inline back-reference as it goes. Name offsets are chunk-relative,
// so origin is the chunk offset at which buf will sit.
type xmlBuilder struct {
	buf    []byte
	origin uint32
}

func (b *xmlBuilder) u8(v byte)    { b.buf = append(b.buf, v) }
func (b *xmlBuilder) u16(v uint16) { b.buf = append(b.buf, byte(v), byte(v>>8)) }
func (b *xmlBuilder) u32(v uint32) {
	b.buf = append(b.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (b *xmlBuilder) name(s string) {
	inlinePos := b.origin + uint32(len(b.buf)+4)
	b.u32(inlinePos)
	b.u32(0) // next-pointer
	b.u16(0) // hash
	b.u16(uint16(len(s)))
	for _, r := range s {
		b.u16(uint16(r))
	}
	b.u16(0) // NUL
}

func (b *xmlBuilder) openStart(hasAttrs bool, name string) {
	if hasAttrs {
		b.u8(0x41)
	} else {
		b.u8(0x01)
	}
	b.u16(0) // dependency-id
	b.u32(0) // element-length
	b.name(name)
	if hasAttrs {
		b.u32(0) // attribute-list-length
	}
}

func (b *xmlBuilder) closeStart()   { b.u8(0x02) }
func (b *xmlBuilder) closeElement() { b.u8(0x04) }

func (b *xmlBuilder) attribute(name string) {
	b.u8(0x06)
	b.name(name)
}

func (b *xmlBuilder) valueText(s string) {
	b.u8(0x05)
	b.u8(0x01) // string-type
	b.u16(uint16(len(s)))
	for _, r := range s {
		b.u16(uint16(r))
	}
}

func TestTokenizerDataNameIdiom(t *testing.T) {
	b := &xmlBuilder{}
	b.openStart(false, "EventData")
	b.openStart(true, "Data")
	b.attribute("Name")
	b.valueText("TargetUserName")
	b.closeStart()
	b.valueText("alice")
	b.closeElement() // Data
	b.closeElement() // EventData

	ctx := newRootContext(newChunkState(b.buf))
	var out bytes.Buffer
	rec := newRecordEmitter(&out)
	require.NoError(t, runTokenizer(ctx, rec))

	assert.Contains(t, out.String(), "'TargetUserName':'alice'")
	assert.NotContains(t, out.String(), "'Name':")
	assert.Equal(t, 0, ctx.chunk.names.depth(), "Name Stack must be empty once the Tokenizer returns")
}

func TestTokenizerFixedTemplate(t *testing.T) {
	b := &xmlBuilder{}
	b.openStart(false, "EventID")
	b.valueText("4624")
	b.closeElement()

	ctx := newRootContext(newChunkState(b.buf))
	tpl := newTemplate(1)
	ctx.template = tpl

	var out bytes.Buffer
	require.NoError(t, runTokenizer(ctx, newRecordEmitter(&out)))

	v, ok := tpl.fixed.Get("EventID")
	require.True(t, ok)
	assert.Equal(t, "4624 (An account was successfully logged on.)", v)
	assert.Equal(t, "", out.String(), "values inside a template body populate the Description, not the output")
}

func TestTokenizerMalformedTokenAborts(t *testing.T) {
	ctx := newRootContext(newChunkState([]byte{0xFE}))
	err := runTokenizer(ctx, newRecordEmitter(&bytes.Buffer{}))
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenizerNoOpTokensAreSkipped(t *testing.T) {
	ctx := newRootContext(newChunkState([]byte{0x07, 0x08, 0x47}))
	require.NoError(t, runTokenizer(ctx, newRecordEmitter(&bytes.Buffer{})))
	assert.Equal(t, 0, ctx.remaining())
}

func TestTokenizerEOFSetsOffsetToLength(t *testing.T) {
	ctx := newRootContext(newChunkState([]byte{0x00, 0xAA, 0xBB}))
	require.NoError(t, runTokenizer(ctx, newRecordEmitter(&bytes.Buffer{})))
	assert.Equal(t, 0, ctx.remaining())
}
