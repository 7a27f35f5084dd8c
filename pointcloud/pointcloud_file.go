package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/registration/logging"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
	// PCDCompressed binary format for pcd.
	PCDCompressed PCDType = 2
)

// normals further than this from unit length are reported when loading a file.
const normalLengthTolerance = 1e-3

// NewFromFile returns a pointcloud read in from the given file. Normals that are not of unit
// length are reported but are not an error.
func NewFromFile(fn string, logger logging.Logger) (PointCloud, error) {
	var pc PointCloud
	var err error
	switch filepath.Ext(fn) {
	case ".pcd":
		pc, err = newFromPCDFile(fn)
	case ".las":
		pc, err = NewFromLASFile(fn, logger)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
	if err != nil {
		return nil, err
	}
	if pc.HasNormals() {
		for i := 0; i < pc.Size(); i++ {
			if n := pc.Normal(i).Norm(); math.Abs(n-1) > normalLengthTolerance {
				logger.Warnw("normal is not of unit length", "file", fn, "index", i, "length", n)
				break
			}
		}
	}
	logger.Debugw("loaded point cloud", "file", fn, "points", pc.Size(), "normals", pc.HasNormals())
	return pc, nil
}

func newFromPCDFile(fn string) (PointCloud, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	pc, err := ReadPCD(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", fn)
	}
	return pc, nil
}

// NewFromLASFile returns a point cloud from reading a LAS file. LAS point records carry no
// normals, so the cloud never has any. If any lossiness of points could occur from reading it
// in, it's reported but is not an error.
func NewFromLASFile(fn string, logger logging.Logger) (PointCloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", fn)
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	points := make([]r3.Vector, 0, lf.Header.NumberPoints)
	warned := false
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, errors.Wrapf(err, "reading point %d of %q", i, fn)
		}
		data := p.PointData()
		v := r3.Vector{X: data.X, Y: data.Y, Z: data.Z}
		if !warned && !isPrecise(v) {
			logger.Warnw("potential floating point lossiness for LAS point",
				"point", v, "range", fmt.Sprintf("[%f,%f]", minPreciseFloat64, maxPreciseFloat64))
			warned = true
		}
		points = append(points, v)
	}
	return New(points), nil
}

// WriteToLASFile writes the point positions out to a LAS file. Normals are not written.
func WriteToLASFile(cloud PointCloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	if err = lf.AddHeader(lidario.LasHeader{PointFormatID: 0}); err != nil {
		return err
	}
	for i, pos := range cloud.Points() {
		if !isPrecise(pos) {
			return errors.Errorf("point %d %v is outside of the precise float range [%f,%f]",
				i, pos, minPreciseFloat64, maxPreciseFloat64)
		}
		if err = lf.AddLasPoint(&lidario.PointRecord0{
			X: pos.X,
			Y: pos.Y,
			Z: pos.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3),
			},
			PointSourceID: 1,
		}); err != nil {
			return err
		}
	}
	return nil
}

// floats outside of this range lose integer precision.
const (
	maxPreciseFloat64 = float64(1 << 53)
	minPreciseFloat64 = -maxPreciseFloat64
)

func isPrecise(v r3.Vector) bool {
	for _, x := range []float64{v.X, v.Y, v.Z} {
		if x < minPreciseFloat64 || x > maxPreciseFloat64 {
			return false
		}
	}
	return true
}

// WriteToPCDFile writes the point cloud out to a PCD file.
func WriteToPCDFile(cloud PointCloud, fn string, outputType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err = ToPCD(cloud, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}

// ToPCD writes the cloud to out in the PCD v0.7 format.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	var err error

	switch outputType {
	case PCDBinary, PCDAscii:
	case PCDCompressed:
		return errors.New("compressed PCD not yet implemented")
	default:
		return errors.Errorf("unknown PCD type %d", outputType)
	}

	_, err = fmt.Fprintf(out, "VERSION .7\n")
	if err != nil {
		return err
	}
	// binary data is written as doubles so a round trip keeps every bit
	switch cloud.HasNormals() {
	case true:
		_, err = fmt.Fprintf(out, "FIELDS x y z normal_x normal_y normal_z\n"+
			"SIZE 8 8 8 8 8 8\n"+
			"TYPE F F F F F F\n"+
			"COUNT 1 1 1 1 1 1\n")
	case false:
		_, err = fmt.Fprintf(out, "FIELDS x y z\n"+
			"SIZE 8 8 8\n"+
			"TYPE F F F\n"+
			"COUNT 1 1 1\n")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		cloud.Size(),
		1,
		cloud.Size())
	if err != nil {
		return err
	}

	if outputType == PCDBinary {
		_, err = fmt.Fprintf(out, "DATA binary\n")
	} else {
		_, err = fmt.Fprintf(out, "DATA ascii\n")
	}
	if err != nil {
		return err
	}
	return writePCDData(cloud, out, outputType)
}

func writePCDData(cloud PointCloud, out io.Writer, pcdtype PCDType) error {
	for i := 0; i < cloud.Size(); i++ {
		values := []float64{cloud.Point(i).X, cloud.Point(i).Y, cloud.Point(i).Z}
		if cloud.HasNormals() {
			n := cloud.Normal(i)
			values = append(values, n.X, n.Y, n.Z)
		}
		var err error
		switch pcdtype {
		case PCDBinary:
			buf := make([]byte, 8*len(values))
			for j, v := range values {
				binary.LittleEndian.PutUint64(buf[8*j:], math.Float64bits(v))
			}
			_, err = out.Write(buf)
		case PCDAscii:
			tokens := make([]string, len(values))
			for j, v := range values {
				tokens[j] = strconv.FormatFloat(v, 'f', -1, 64)
			}
			_, err = fmt.Fprintln(out, strings.Join(tokens, " "))
		case PCDCompressed:
			return errors.New("compressed PCD not yet implemented")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type pcdFieldType int

const (
	pcdPointOnly   pcdFieldType = 3
	pcdPointNormal pcdFieldType = 6
)

type pcdValType string

// integer ("I") and unsigned ("U") fields are rejected, positions and normals are floats.
const pcdValFloat pcdValType = "F"

type pcdHeader struct {
	fields  pcdFieldType
	size    []uint64
	valType []pcdValType
	count   []uint64
	width   uint64
	height  uint64
	points  int
	data    PCDType
}

const pcdCommentChar = "#"

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	var err error
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	tokens := strings.Fields(value)
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %s", name, line)
	}

	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		switch strings.Join(tokens, " ") {
		case "x y z":
			header.fields = pcdPointOnly
		case "x y z normal_x normal_y normal_z":
			header.fields = pcdPointNormal
		default:
			return errors.Errorf("unsupported pcd fields %s", value)
		}
	case "SIZE":
		if len(tokens) != int(header.fields) {
			return errors.New("unexpected number of fields in SIZE line")
		}
		header.size = make([]uint64, len(tokens))
		for i, token := range tokens {
			header.size[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return errors.Errorf("invalid SIZE field %s", token)
			}
			if header.size[i] != 4 && header.size[i] != 8 {
				return errors.Errorf("unsupported SIZE %d, only 4 and 8 byte floats are supported", header.size[i])
			}
		}
	case "TYPE":
		if len(tokens) != int(header.fields) {
			return errors.New("unexpected number of fields in TYPE line")
		}
		header.valType = make([]pcdValType, len(tokens))
		for i, token := range tokens {
			header.valType[i] = pcdValType(token)
			if header.valType[i] != pcdValFloat {
				return errors.Errorf("unsupported TYPE %s, only %s is supported for positions and normals", token, pcdValFloat)
			}
		}
	case "COUNT":
		if len(tokens) != int(header.fields) {
			return errors.New("unexpected number of fields in COUNT line")
		}
		header.count = make([]uint64, len(tokens))
		for i, token := range tokens {
			header.count[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid COUNT field %s", token)
			}
			if header.count[i] != 1 {
				return errors.Errorf("unsupported COUNT %d", header.count[i])
			}
		}
	case "WIDTH":
		header.width, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid WIDTH field %s", value)
		}
	case "HEIGHT":
		header.height, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid HEIGHT field %s", value)
		}
	case "VIEWPOINT":
		if len(tokens) != 7 {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
		viewpoint := [7]float64{}
		for i, token := range tokens {
			viewpoint[i], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid VIEWPOINT field %s", token)
			}
		}
		q := quat.Number{Real: viewpoint[3], Imag: viewpoint[4], Jmag: viewpoint[5], Kmag: viewpoint[6]}
		if quat.Abs(q) == 0 {
			return errors.New("VIEWPOINT orientation is a zero quaternion")
		}
	case "POINTS":
		var points uint64
		points, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid POINTS field %s", value)
		}
		if header.height != 0 && header.width > math.MaxUint64/header.height {
			return errors.Errorf("WIDTH*HEIGHT overflows, WIDTH %d HEIGHT %d", header.width, header.height)
		}
		if points != header.width*header.height {
			return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", points, header.width*header.height)
		}
		if points > math.MaxInt {
			return errors.Errorf("POINTS field %d is too large", points)
		}
		header.points = int(points)
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		case "binary_compressed":
			header.data = PCDCompressed
		default:
			return errors.Errorf("unsupported pcd data type %s", value)
		}
	}

	return nil
}

// maxPCDPreallocate bounds the storage reserved from an unverified POINTS count.
const maxPCDPreallocate = 1 << 16

// ReadPCD reads a PCD v0.7 cloud with fields "x y z" or "x y z normal_x normal_y normal_z".
// The VIEWPOINT is validated but not applied to the points.
func ReadPCD(inRaw io.Reader) (PointCloud, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "error reading header line %d", headerLineCount)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}
	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	case PCDCompressed:
		return nil, errors.New("compressed pcd not yet supported")
	default:
		return nil, errors.Errorf("unsupported pcd data type %v", header.data)
	}
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	values := make([][]float64, 0, min(header.points, maxPCDPreallocate))
	for i := 0; i < header.points; i++ {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		tokens := strings.Fields(line)
		if len(tokens) != int(header.fields) {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		point := make([]float64, len(tokens))
		for j, token := range tokens {
			point[j], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid point %d field %s", i, token)
			}
		}
		values = append(values, point)
	}
	return cloudFromValues(values, header)
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	values := make([][]float64, 0, min(header.points, maxPCDPreallocate))
	for i := 0; i < header.points; i++ {
		point := make([]float64, int(header.fields))
		for j := range point {
			buf := make([]byte, header.size[j])
			if _, err := io.ReadFull(in, buf); err != nil {
				return nil, errors.Wrapf(err, "reading point %d field %d", i, j)
			}
			switch header.size[j] {
			case 8:
				point[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
			default:
				point[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
			}
		}
		values = append(values, point)
	}
	return cloudFromValues(values, header)
}

func cloudFromValues(values [][]float64, header pcdHeader) (PointCloud, error) {
	points := make([]r3.Vector, len(values))
	var normals []r3.Vector
	if header.fields == pcdPointNormal {
		normals = make([]r3.Vector, len(values))
	}
	for i, v := range values {
		points[i] = r3.Vector{X: v[0], Y: v[1], Z: v[2]}
		switch header.fields {
		case pcdPointOnly:
		case pcdPointNormal:
			normals[i] = r3.Vector{X: v[3], Y: v[4], Z: v[5]}
		default:
			return nil, errors.Errorf("unsupported pcd field type %d", header.fields)
		}
	}
	return NewWithNormals(points, normals)
}
