package stream

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decoder convierte chunks de bytes en texto UTF-8 conservando secuencias incompletas entre llamadas.
type decoder struct {
	t     transform.Transformer
	carry []byte
	dst   []byte
}

func newDecoder() *decoder {
	return &decoder{
		t:   unicode.UTF8.NewDecoder(),
		dst: make([]byte, 512),
	}
}

// decode devuelve el texto completo disponible; los bytes de un caracter partido quedan en carry.
func (d *decoder) decode(chunk []byte, atEOF bool) (string, error) {
	src := chunk
	if len(d.carry) > 0 {
		src = append(d.carry, chunk...)
		d.carry = nil
	}

	var out strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		out.Write(d.dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			return out.String(), nil
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			if atEOF {
				return out.String(), err
			}
			d.carry = append([]byte(nil), src...)
			return out.String(), nil
		default:
			return out.String(), err
		}
	}
}

// flush cierra el decoder; una secuencia incompleta pendiente se emite como U+FFFD.
func (d *decoder) flush() (string, error) {
	if len(d.carry) == 0 {
		return "", nil
	}
	return d.decode(nil, true)
}

// pending indica cuantos bytes esperan el resto de su caracter.
func (d *decoder) pending() int {
	return len(d.carry)
}
