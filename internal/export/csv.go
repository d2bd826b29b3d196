package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ojparkinson/massbalance/internal/massbalance"
)

// Header is the column layout of the mass balance spreadsheet.
var Header = []string{
	"trecho", "x_inicio", "x_fim",
	"estaca_inicio", "estaca_fim",
	"distancia_m", "distancia_estacas",
	"area_vt_greide", "area_perfil_recortado",
	"area_diferenca", "area_corte", "area_aterro",
}

// WriteCSV writes one semicolon separated row per bin. Bins without
// coverage keep their position columns and leave the area columns empty.
func WriteCSV(w io.Writer, bins []massbalance.BinResult) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, b := range bins {
		row := []string{
			b.SectionID,
			number(b.XStart), number(b.XEnd),
			number(b.StationStart), number(b.StationEnd),
			number(b.DistM), number(b.DistStations),
			"", "", "", "", "",
		}
		if b.OK() {
			row[7] = number(b.AreaVT)
			row[8] = number(b.AreaPF)
			row[9] = number(b.AreaDiff)
			row[10] = number(b.Cut)
			row[11] = number(b.Fill)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func number(v float64) string {
	return strconv.FormatFloat(massbalance.Round(v), 'f', -1, 64)
}
