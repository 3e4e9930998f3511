package geo

type countryInfo struct {
	coords    Coordinates
	continent Continent
}

// countries maps a country name to an approximate centroid and its continent.
// Keys are matched exactly after trimming.
var countries = map[string]countryInfo{
	// North America
	"United States":      {Coordinates{Lat: 39.8283, Lng: -98.5795}, ContinentNorthAmerica},
	"USA":                {Coordinates{Lat: 39.8283, Lng: -98.5795}, ContinentNorthAmerica},
	"Canada":             {Coordinates{Lat: 56.1304, Lng: -106.3468}, ContinentNorthAmerica},
	"Mexico":             {Coordinates{Lat: 23.6345, Lng: -102.5528}, ContinentNorthAmerica},
	"Guatemala":          {Coordinates{Lat: 15.7835, Lng: -90.2308}, ContinentNorthAmerica},
	"Costa Rica":         {Coordinates{Lat: 9.7489, Lng: -83.7534}, ContinentNorthAmerica},
	"Panama":             {Coordinates{Lat: 8.5380, Lng: -80.7821}, ContinentNorthAmerica},
	"Cuba":               {Coordinates{Lat: 21.5218, Lng: -77.7812}, ContinentNorthAmerica},
	"Jamaica":            {Coordinates{Lat: 18.1096, Lng: -77.2975}, ContinentNorthAmerica},
	"Dominican Republic": {Coordinates{Lat: 18.7357, Lng: -70.1627}, ContinentNorthAmerica},

	// South America
	"Brazil":    {Coordinates{Lat: -14.2350, Lng: -51.9253}, ContinentSouthAmerica},
	"Argentina": {Coordinates{Lat: -38.4161, Lng: -63.6167}, ContinentSouthAmerica},
	"Chile":     {Coordinates{Lat: -35.6751, Lng: -71.5430}, ContinentSouthAmerica},
	"Colombia":  {Coordinates{Lat: 4.5709, Lng: -74.2973}, ContinentSouthAmerica},
	"Peru":      {Coordinates{Lat: -9.1900, Lng: -75.0152}, ContinentSouthAmerica},
	"Venezuela": {Coordinates{Lat: 6.4238, Lng: -66.5897}, ContinentSouthAmerica},
	"Ecuador":   {Coordinates{Lat: -1.8312, Lng: -78.1834}, ContinentSouthAmerica},
	"Bolivia":   {Coordinates{Lat: -16.2902, Lng: -63.5887}, ContinentSouthAmerica},
	"Uruguay":   {Coordinates{Lat: -32.5228, Lng: -55.7658}, ContinentSouthAmerica},
	"Paraguay":  {Coordinates{Lat: -23.4425, Lng: -58.4438}, ContinentSouthAmerica},

	// Europe
	"United Kingdom": {Coordinates{Lat: 55.3781, Lng: -3.4360}, ContinentEurope},
	"UK":             {Coordinates{Lat: 55.3781, Lng: -3.4360}, ContinentEurope},
	"Ireland":        {Coordinates{Lat: 53.4129, Lng: -8.2439}, ContinentEurope},
	"France":         {Coordinates{Lat: 46.2276, Lng: 2.2137}, ContinentEurope},
	"Germany":        {Coordinates{Lat: 51.1657, Lng: 10.4515}, ContinentEurope},
	"Spain":          {Coordinates{Lat: 40.4637, Lng: -3.7492}, ContinentEurope},
	"Portugal":       {Coordinates{Lat: 39.3999, Lng: -8.2245}, ContinentEurope},
	"Italy":          {Coordinates{Lat: 41.8719, Lng: 12.5674}, ContinentEurope},
	"Netherlands":    {Coordinates{Lat: 52.1326, Lng: 5.2913}, ContinentEurope},
	"Belgium":        {Coordinates{Lat: 50.5039, Lng: 4.4699}, ContinentEurope},
	"Switzerland":    {Coordinates{Lat: 46.8182, Lng: 8.2275}, ContinentEurope},
	"Austria":        {Coordinates{Lat: 47.5162, Lng: 14.5501}, ContinentEurope},
	"Poland":         {Coordinates{Lat: 51.9194, Lng: 19.1451}, ContinentEurope},
	"Czech Republic": {Coordinates{Lat: 49.8175, Lng: 15.4730}, ContinentEurope},
	"Hungary":        {Coordinates{Lat: 47.1625, Lng: 19.5033}, ContinentEurope},
	"Greece":         {Coordinates{Lat: 39.0742, Lng: 21.8243}, ContinentEurope},
	"Sweden":         {Coordinates{Lat: 60.1282, Lng: 18.6435}, ContinentEurope},
	"Norway":         {Coordinates{Lat: 60.4720, Lng: 8.4689}, ContinentEurope},
	"Denmark":        {Coordinates{Lat: 56.2639, Lng: 9.5018}, ContinentEurope},
	"Finland":        {Coordinates{Lat: 61.9241, Lng: 25.7482}, ContinentEurope},
	"Iceland":        {Coordinates{Lat: 64.9631, Lng: -19.0208}, ContinentEurope},
	"Ukraine":        {Coordinates{Lat: 48.3794, Lng: 31.1656}, ContinentEurope},
	"Romania":        {Coordinates{Lat: 45.9432, Lng: 24.9668}, ContinentEurope},
	"Russia":         {Coordinates{Lat: 61.5240, Lng: 105.3188}, ContinentEurope},

	// Asia
	"Japan":        {Coordinates{Lat: 36.2048, Lng: 138.2529}, ContinentAsia},
	"China":        {Coordinates{Lat: 35.8617, Lng: 104.1954}, ContinentAsia},
	"South Korea":  {Coordinates{Lat: 35.9078, Lng: 127.7669}, ContinentAsia},
	"Taiwan":       {Coordinates{Lat: 23.6978, Lng: 120.9605}, ContinentAsia},
	"India":        {Coordinates{Lat: 20.5937, Lng: 78.9629}, ContinentAsia},
	"Pakistan":     {Coordinates{Lat: 30.3753, Lng: 69.3451}, ContinentAsia},
	"Bangladesh":   {Coordinates{Lat: 23.6850, Lng: 90.3563}, ContinentAsia},
	"Thailand":     {Coordinates{Lat: 15.8700, Lng: 100.9925}, ContinentAsia},
	"Vietnam":      {Coordinates{Lat: 14.0583, Lng: 108.2772}, ContinentAsia},
	"Philippines":  {Coordinates{Lat: 12.8797, Lng: 121.7740}, ContinentAsia},
	"Indonesia":    {Coordinates{Lat: -0.7893, Lng: 113.9213}, ContinentAsia},
	"Malaysia":     {Coordinates{Lat: 4.2105, Lng: 101.9758}, ContinentAsia},
	"Singapore":    {Coordinates{Lat: 1.3521, Lng: 103.8198}, ContinentAsia},
	"Turkey":       {Coordinates{Lat: 38.9637, Lng: 35.2433}, ContinentAsia},
	"Israel":       {Coordinates{Lat: 31.0461, Lng: 34.8516}, ContinentAsia},
	"Saudi Arabia": {Coordinates{Lat: 23.8859, Lng: 45.0792}, ContinentAsia},
	"UAE":          {Coordinates{Lat: 23.4241, Lng: 53.8478}, ContinentAsia},
	"Iran":         {Coordinates{Lat: 32.4279, Lng: 53.6880}, ContinentAsia},
	"Kazakhstan":   {Coordinates{Lat: 48.0196, Lng: 66.9237}, ContinentAsia},
	"Mongolia":     {Coordinates{Lat: 46.8625, Lng: 103.8467}, ContinentAsia},
	"Nepal":        {Coordinates{Lat: 28.3949, Lng: 84.1240}, ContinentAsia},
	"Sri Lanka":    {Coordinates{Lat: 7.8731, Lng: 80.7718}, ContinentAsia},

	// Africa
	"Egypt":        {Coordinates{Lat: 26.8206, Lng: 30.8025}, ContinentAfrica},
	"Nigeria":      {Coordinates{Lat: 9.0820, Lng: 8.6753}, ContinentAfrica},
	"South Africa": {Coordinates{Lat: -30.5595, Lng: 22.9375}, ContinentAfrica},
	"Kenya":        {Coordinates{Lat: -0.0236, Lng: 37.9062}, ContinentAfrica},
	"Ethiopia":     {Coordinates{Lat: 9.1450, Lng: 40.4897}, ContinentAfrica},
	"Morocco":      {Coordinates{Lat: 31.7917, Lng: -7.0926}, ContinentAfrica},
	"Ghana":        {Coordinates{Lat: 7.9465, Lng: -1.0232}, ContinentAfrica},
	"Tanzania":     {Coordinates{Lat: -6.3690, Lng: 34.8888}, ContinentAfrica},
	"Algeria":      {Coordinates{Lat: 28.0339, Lng: 1.6596}, ContinentAfrica},
	"Tunisia":      {Coordinates{Lat: 33.8869, Lng: 9.5375}, ContinentAfrica},
	"Senegal":      {Coordinates{Lat: 14.4974, Lng: -14.4524}, ContinentAfrica},
	"Uganda":       {Coordinates{Lat: 1.3733, Lng: 32.2903}, ContinentAfrica},

	// Oceania
	"Australia":        {Coordinates{Lat: -25.2744, Lng: 133.7751}, ContinentOceania},
	"New Zealand":      {Coordinates{Lat: -40.9006, Lng: 174.8860}, ContinentOceania},
	"Fiji":             {Coordinates{Lat: -17.7134, Lng: 178.0650}, ContinentOceania},
	"Papua New Guinea": {Coordinates{Lat: -6.3150, Lng: 143.9555}, ContinentOceania},
	"Samoa":            {Coordinates{Lat: -13.7590, Lng: -172.1046}, ContinentOceania},
}
