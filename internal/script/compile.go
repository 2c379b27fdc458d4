package script

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// SyntaxError reports a token the compiler could not translate.
type SyntaxError struct {
	Offset int
	Token  string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d near %q: %s", e.Offset, e.Token, e.Reason)
}

// Compile translates PumpkinScript text into the binary program encoding.
//
//	0x0aff        data (hex)
//	"text"        data (escapes \" \\ \n \t)
//	42            data (minimal big-endian unsigned integer)
//	[ ... ]       data holding the compiled inner program
//	'WORD         data holding the encoded instruction WORD
//	WORD          instruction
func Compile(src string) ([]byte, error) {
	c := &compiler{src: src}
	out, err := c.sequence(false)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type compiler struct {
	src string
	pos int
}

func (c *compiler) sequence(nested bool) ([]byte, error) {
	out := []byte{}
	for {
		c.skipSpace()
		if c.pos >= len(c.src) {
			if nested {
				return nil, &SyntaxError{Offset: c.pos, Token: "", Reason: "unterminated ["}
			}
			return out, nil
		}
		start := c.pos
		switch ch := c.src[c.pos]; ch {
		case '[':
			c.pos++
			inner, err := c.sequence(true)
			if err != nil {
				return nil, err
			}
			out = AppendData(out, inner)
		case ']':
			if !nested {
				return nil, &SyntaxError{Offset: start, Token: "]", Reason: "unbalanced ]"}
			}
			c.pos++
			return out, nil
		case '"':
			s, err := c.quoted()
			if err != nil {
				return nil, err
			}
			out = AppendData(out, []byte(s))
		default:
			tok := c.word()
			b, err := translate(tok, start)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
	}
}

func (c *compiler) skipSpace() {
	for c.pos < len(c.src) && unicode.IsSpace(rune(c.src[c.pos])) {
		c.pos++
	}
}

func (c *compiler) word() string {
	start := c.pos
	for c.pos < len(c.src) {
		ch := c.src[c.pos]
		if unicode.IsSpace(rune(ch)) || ch == '[' || ch == ']' || ch == '"' {
			break
		}
		c.pos++
	}
	return c.src[start:c.pos]
}

func (c *compiler) quoted() (string, error) {
	start := c.pos
	c.pos++ // opening quote
	var sb strings.Builder
	for c.pos < len(c.src) {
		ch := c.src[c.pos]
		switch ch {
		case '"':
			c.pos++
			return sb.String(), nil
		case '\\':
			if c.pos+1 >= len(c.src) {
				return "", &SyntaxError{Offset: start, Token: c.src[start:], Reason: "dangling escape"}
			}
			switch esc := c.src[c.pos+1]; esc {
			case '"', '\\':
				sb.WriteByte(esc)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return "", &SyntaxError{Offset: c.pos, Token: c.src[c.pos : c.pos+2], Reason: "unknown escape"}
			}
			c.pos += 2
		default:
			sb.WriteByte(ch)
			c.pos++
		}
	}
	return "", &SyntaxError{Offset: start, Token: c.src[start:], Reason: "unterminated string"}
}

func translate(tok string, offset int) ([]byte, error) {
	switch {
	case strings.HasPrefix(tok, "0x"):
		b, err := hex.DecodeString(tok[2:])
		if err != nil {
			return nil, &SyntaxError{Offset: offset, Token: tok, Reason: "invalid hex"}
		}
		return EncodeData(b), nil
	case tok[0] >= '0' && tok[0] <= '9':
		n, ok := new(big.Int).SetString(tok, 10)
		if !ok {
			return nil, &SyntaxError{Offset: offset, Token: tok, Reason: "invalid integer"}
		}
		b := n.Bytes()
		if len(b) == 0 {
			b = []byte{0}
		}
		return EncodeData(b), nil
	case tok[0] == '\'':
		ref, err := EncodeInstruction([]byte(tok[1:]))
		if err != nil {
			return nil, &SyntaxError{Offset: offset, Token: tok, Reason: "invalid instruction reference"}
		}
		return EncodeData(ref), nil
	default:
		instr, err := EncodeInstruction([]byte(tok))
		if err != nil {
			return nil, &SyntaxError{Offset: offset, Token: tok, Reason: "invalid instruction name"}
		}
		return instr, nil
	}
}
